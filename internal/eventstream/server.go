package eventstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/reconcile"
	"github.com/muurk/fleetsync/internal/urls"
	"go.uber.org/zap"
)

// Source is what the server streams from. *reconcile.Engine implements it.
type Source interface {
	Subscribe(buffer int) (<-chan reconcile.Event, func())
	Snapshot() []fleetapi.Device
}

// Config holds the server configuration
type Config struct {
	Addr       string
	CertPath   string // optional; with KeyPath enables TLS
	KeyPath    string
	CaptureDir string // directory to append sent messages to as JSONL (empty = disabled)
	Buffer     int    // per-client event buffer
}

// Server streams reconciliation events to websocket clients.
type Server struct {
	config     *Config
	source     Source
	router     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	tlsConfig  *tls.Config

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a Server. It does not listen until Start or Serve.
func New(config *Config, source Source) (*Server, error) {
	if config.Buffer <= 0 {
		config.Buffer = 64
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:      config,
		source:      source,
		router:      router,
		tlsConfig:   tlsConfig,
		activeConns: make(map[string]*websocket.Conn),
	}
	router.GET(urls.Events, s.handleEvents)
	if ctl, ok := source.(Controller); ok {
		router.POST(urls.StatusRequests, s.handleStatusRequest(ctl))
	}
	router.GET(urls.Health, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.GetActiveConnections()})
	})
	return s, nil
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
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Event stream listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.String("path", urls.Events),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping event stream...")
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

// Shutdown stops accepting clients, closes the open ones and waits for
// their handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down event stream...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logging.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	// Hijacked connections are not closed by http.Server.Shutdown.
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of connected clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(addr string, conn *websocket.Conn) {
	s.mu.Lock()
	s.activeConns[addr] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	delete(s.activeConns, addr)
	s.mu.Unlock()
}
