package fleetsim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/urls"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// Handler serves the fleet REST API from a Store.
type Handler struct {
	store *Store
	auth  *Authenticator
}

// NewHandler wires a store and an authenticator.
func NewHandler(store *Store, auth *Authenticator) *Handler {
	return &Handler{store: store, auth: auth}
}

// InitRoutes builds the gin router.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger)

	router.GET(urls.Health, func(c *gin.Context) {
		respond(c, http.StatusOK, "ok", gin.H{"status": "ok"})
	})
	router.POST(urls.Login, h.login)

	api := router.Group(urls.APIPrefix, h.authMiddleware)
	{
		api.GET("/devices", h.listDevices)
		api.POST("/devices", h.createDevice)
		api.PUT("/devices", h.updateDevice)
	}
	return router
}

func requestLogger(c *gin.Context) {
	c.Next()
	logging.Debug("Simulator request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
	)
}

// respond writes an envelope. The envelope code mirrors the HTTP status.
func respond(c *gin.Context, status int, message string, data any) {
	env := fleetapi.Envelope{Code: status, Message: message}
	if data != nil {
		raw, err := codec.Encode(data, nil)
		if err != nil {
			logging.Error("Failed to encode response data", zap.Error(err))
			status, env.Code, env.Message = http.StatusInternalServerError, http.StatusInternalServerError, "encode failed"
		} else {
			env.Data = raw
		}
	}

	body, err := codec.Encode(env, nil)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func abort(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
	c.Abort()
}

func (h *Handler) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abort(c, http.StatusUnauthorized, "missing Authorization header")
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		abort(c, http.StatusUnauthorized, "invalid Authorization header format")
		return
	}

	claims, err := h.auth.ParseToken(parts[1])
	if err != nil {
		abort(c, http.StatusUnauthorized, err.Error())
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

func (h *Handler) login(c *gin.Context) {
	var creds fleetapi.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.auth.Login(creds.Email, creds.Password)
	if err != nil {
		// bad credentials are 400, not 401
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	respond(c, http.StatusOK, "login successful", result)
}

func (h *Handler) listDevices(c *gin.Context) {
	params := fleetapi.ListParams{
		Keyword: c.Query(urls.ParamKeyword),
	}
	params.Page, _ = strconv.Atoi(c.Query(urls.ParamPage))
	params.PageSize, _ = strconv.Atoi(c.Query(urls.ParamPageSize))

	if raw := c.Query(urls.ParamStatus); raw != "" {
		status, err := fleetapi.ParseStatus(raw)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		params.Status = &status
	}
	if raw := c.Query(urls.ParamDevID); raw != "" {
		id, err := codec.ParseID(raw)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		params.DevID = id
	}

	respond(c, http.StatusOK, "ok", h.store.List(params))
}

func (h *Handler) updateDevice(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abort(c, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := checkWireID(body); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkWireStatus(body); err != nil {
		abort(c, http.StatusBadRequest, fleetapi.GetShortErrorMessage(err))
		return
	}
	var update fleetapi.DeviceUpdate
	if err := codec.Unmarshal(body, &update); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := fleetapi.JoinValidationErrors(fleetapi.ValidateDeviceUpdate(&update)); err != nil {
		abort(c, http.StatusBadRequest, fleetapi.GetShortErrorMessage(err))
		return
	}

	dev, err := h.store.Update(update)
	if err != nil {
		status, message := statusFor(err)
		abort(c, status, message)
		return
	}

	logging.Info("Device updated",
		zap.String("dev_id", dev.ID.String()),
		zap.Stringer("status", dev.Status),
	)
	respond(c, http.StatusOK, "update successful", dev)
}

func (h *Handler) createDevice(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abort(c, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := checkWireStatus(body); err != nil {
		abort(c, http.StatusBadRequest, fleetapi.GetShortErrorMessage(err))
		return
	}
	var create fleetapi.DeviceCreate
	if err := codec.Unmarshal(body, &create); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}

	dev, err := h.store.Create(create)
	if err != nil {
		status, message := statusFor(err)
		abort(c, status, message)
		return
	}
	respond(c, http.StatusCreated, "created", dev)
}

// checkWireID requires dev_id as a bare integer literal. codec.ID also
// accepts a quoted string, which the real backend refuses.
func checkWireID(body []byte) error {
	var wire struct {
		ID json.RawMessage `json:"dev_id"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return fmt.Errorf("invalid request body")
	}
	raw := bytes.TrimSpace(wire.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("dev_id is required")
	}
	if raw[0] == '"' {
		return fmt.Errorf("dev_id must be a number, got string %s", raw)
	}
	return nil
}

// checkWireStatus rejects a dev_status outside 0..2. fleetapi.Status reads
// unknown values as offline, which a server must not do.
func checkWireStatus(body []byte) error {
	var wire struct {
		Status *int `json:"dev_status"`
	}
	if err := json.Unmarshal(codec.Protect(body, codec.ExceedsSafeInteger), &wire); err != nil {
		return fmt.Errorf("invalid request body")
	}
	if wire.Status == nil {
		return fmt.Errorf("dev_status is required")
	}
	return fleetapi.ValidateStatus(fleetapi.Status(*wire.Status))
}
