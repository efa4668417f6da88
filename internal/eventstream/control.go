package eventstream

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/reconcile"
	"go.uber.org/zap"
)

// Controller starts status changes for stream clients. When the Source
// also implements it, the server accepts POST /status and the outcome is
// streamed to every client like any other cycle.
type Controller interface {
	RequestStatusChange(id codec.ID, desired fleetapi.Status) (*reconcile.Subscription, error)
}

// StatusRequest is the body of POST /status. dev_id may be a bare integer
// or a string.
type StatusRequest struct {
	DevID  codec.ID `json:"dev_id"`
	Status *int     `json:"dev_status"`
}

// StatusAccepted is returned once the optimistic update is in place.
type StatusAccepted struct {
	CycleID string   `json:"cycle_id"`
	DevID   codec.ID `json:"dev_id"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleStatusRequest(ctl Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageSize))
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorBody{Kind: "validation", Message: "unreadable body"})
			return
		}

		var req StatusRequest
		if err := codec.Unmarshal(body, &req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorBody{Kind: "validation", Message: "invalid request body"})
			return
		}
		if !req.DevID.Valid() || req.Status == nil {
			writeJSON(c, http.StatusBadRequest, errorBody{Kind: "validation", Message: "dev_id and dev_status are required"})
			return
		}

		sub, err := ctl.RequestStatusChange(req.DevID, fleetapi.Status(*req.Status))
		if err != nil {
			status := http.StatusServiceUnavailable
			kind := "server"
			var rerr *reconcile.Error
			if errors.As(err, &rerr) {
				kind = rerr.Kind.String()
				switch rerr.Kind {
				case reconcile.KindValidation:
					status = http.StatusBadRequest
				case reconcile.KindNotFound:
					status = http.StatusNotFound
				case reconcile.KindConflict:
					status = http.StatusConflict
				}
			}
			logging.Info("Status request refused",
				zap.String("remote_addr", c.Request.RemoteAddr),
				zap.String("dev_id", req.DevID.String()),
				zap.Error(err),
			)
			writeJSON(c, status, errorBody{Kind: kind, Message: err.Error()})
			return
		}

		writeJSON(c, http.StatusAccepted, StatusAccepted{CycleID: sub.CycleID, DevID: sub.DeviceID})
	}
}

func writeJSON(c *gin.Context, status int, v any) {
	data, err := codec.Default.Encode(v)
	if err != nil {
		data, _ = json.Marshal(errorBody{Kind: "server", Message: "failed to encode response"})
		status = http.StatusInternalServerError
	}
	c.Data(status, "application/json; charset=utf-8", data)
}
