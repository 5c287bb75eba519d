package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
)

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	// Port to listen on. Default: 8080
	Port int

	// ReadTimeout and WriteTimeout bound a single request. A full
	// restore or cleanup runs inside WriteTimeout. Defaults: 15s and 5m.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Minute
	}
}

// Server serves the admin API.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer creates a stopped server for h.
func NewServer(h *Handler, config ServerConfig) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(config.Port)),
			Handler:           h.Router(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       2 * time.Minute,
		},
		port: config.Port,
	}
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errChan:
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("api server shutdown error: %w", err)
			logger.Error("API server shutdown error: %v", err)
			return
		}
		logger.Info("API server stopped gracefully")
	})
	return shutdownErr
}

// Name identifies the server in logs.
func (s *Server) Name() string {
	return "api"
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
