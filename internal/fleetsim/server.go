package fleetsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grandcat/zeroconf"
	"github.com/muurk/fleetsync/internal/logging"
	"go.uber.org/zap"
)

// Config holds the simulator configuration
type Config struct {
	Addr      string
	Secret    string        // HS256 signing key
	TokenTTL  time.Duration // lifetime of issued tokens
	Lag       time.Duration // how long updates stay invisible to reads
	Seed      int           // number of demo devices
	Advertise bool          // register on mDNS
	Instance  string        // mDNS instance name
	Users     []UserSpec
}

// UserSpec is an operator account to create at startup.
type UserSpec struct {
	Username string
	Email    string
	Role     string
	Password string
}

// DefaultUser is created when Config.Users is empty.
var DefaultUser = UserSpec{Username: "operator", Email: "operator@fleet.local", Role: "admin", Password: "fleetsim"}

// Server is a fleet backend with eventually consistent reads.
type Server struct {
	config     *Config
	Store      *Store
	Auth       *Authenticator
	router     *gin.Engine
	httpServer *http.Server
	mdns       *zeroconf.Server
}

// New builds the simulator and seeds it.
func New(config *Config) (*Server, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("a signing secret is required")
	}

	store := NewStore(config.Lag)
	store.Seed(config.Seed)

	auth := NewAuthenticator(config.Secret, config.TokenTTL)
	users := config.Users
	if len(users) == 0 {
		users = []UserSpec{DefaultUser}
	}
	for _, u := range users {
		if _, err := auth.AddUser(u.Username, u.Email, u.Role, u.Password); err != nil {
			return nil, fmt.Errorf("failed to add user %s: %w", u.Email, err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	return &Server{
		config: config,
		Store:  store,
		Auth:   auth,
		router: NewHandler(store, auth).InitRoutes(),
	}, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := listener.Addr().(*net.TCPAddr).Port
	logging.Info("Fleet simulator listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("lag", s.config.Lag),
		zap.Int("devices", s.config.Seed),
	)

	if s.config.Advertise {
		mdns, err := Advertise(s.config.Instance, port)
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.mdns = mdns
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping simulator...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown withdraws the mDNS record and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	logging.Sync()
	return nil
}
