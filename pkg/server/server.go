package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
)

// Component is a long-running part of the service managed by Server.
//
// Lifecycle:
//  1. Serve blocks until ctx is cancelled or an unrecoverable error occurs.
//     It returns nil or ctx.Err() after a graceful shutdown.
//  2. Stop may be called concurrently with Serve and must be idempotent.
//
// If Serve returns an error before ctx is cancelled, Server treats it as
// fatal and stops every other component.
type Component interface {
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error

	// Name identifies the component in logs.
	Name() string

	// Port is the TCP port the component listens on, or 0 for none.
	Port() int
}

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server already served")

// DefaultStopTimeout bounds the shutdown of all components.
const DefaultStopTimeout = 30 * time.Second

// Server runs a set of components concurrently and shuts them down
// together.
//
// Example usage:
//
//	srv := server.New(30 * time.Second)
//	srv.Add(apiServer)
//	srv.Add(metricsServer)
//	srv.Add(server.Background("sweeper", sweeper))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	stopTimeout time.Duration

	// mu protects components and served
	mu         sync.Mutex
	components []Component
	served     bool
}

// New creates a Server. A stopTimeout of zero uses DefaultStopTimeout.
func New(stopTimeout time.Duration) *Server {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Server{
		stopTimeout: stopTimeout,
		components:  make([]Component, 0, 3),
	}
}

// Add registers a component. Names must be unique and non-zero ports must
// not collide.
func (s *Server) Add(c Component) error {
	if c == nil {
		return fmt.Errorf("component cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return ErrAlreadyServed
	}

	for _, existing := range s.components {
		if existing.Name() == c.Name() {
			return fmt.Errorf("component %s already registered", c.Name())
		}
		if c.Port() != 0 && existing.Port() == c.Port() {
			return fmt.Errorf("port %d already in use by %s", c.Port(), existing.Name())
		}
	}

	s.components = append(s.components, c)
	if c.Port() != 0 {
		logger.Info("Registered %s on port %d", c.Name(), c.Port())
	} else {
		logger.Info("Registered %s", c.Name())
	}
	return nil
}

// Components returns a copy of the registered components.
func (s *Server) Components() []Component {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Component, len(s.components))
	copy(out, s.components)
	return out
}

// Serve starts every component and blocks until ctx is cancelled or one of
// them fails. It returns ctx.Err() after a signalled shutdown and the
// component's error after a failure. Serve may only be called once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.components) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no components registered")
	}
	components := make([]Component, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	logger.Info("Starting %d component(s)", len(components))

	// Components stop on either signal or the first failure.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan componentError, len(components))
	var wg sync.WaitGroup

	for _, comp := range components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()

			err := c.Serve(runCtx)
			switch {
			case err == nil || runCtx.Err() != nil:
				logger.Debug("%s stopped", c.Name())
			default:
				logger.Error("%s failed: %v", c.Name(), err)
				errChan <- componentError{name: c.Name(), err: err}
			}
		}(comp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case failed := <-errChan:
		logger.Error("%s failed, shutting down: %v", failed.name, failed.err)
		shutdownErr = fmt.Errorf("%s: %w", failed.name, failed.err)
	}

	cancel()
	s.stopAll(components)
	wg.Wait()

	logger.Info("All components stopped")
	return shutdownErr
}

type componentError struct {
	name string
	err  error
}

// stopAll stops components in reverse registration order within the stop
// timeout. Errors are logged and do not interrupt the remaining stops.
func (s *Server) stopAll(components []Component) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s: %v", c.Name(), err)
		}
	}
}

// ============================================================================
// Background workers
// ============================================================================

// Worker is a component without a listener that runs in its own
// goroutine between Start and Stop. *gc.Sweeper implements it.
type Worker interface {
	Start()
	Stop(ctx context.Context) error
}

type background struct {
	name string
	w    Worker
}

// Background adapts a Worker to Component.
func Background(name string, w Worker) Component {
	return &background{name: name, w: w}
}

func (b *background) Serve(ctx context.Context) error {
	b.w.Start()
	<-ctx.Done()
	return ctx.Err()
}

func (b *background) Stop(ctx context.Context) error { return b.w.Stop(ctx) }
func (b *background) Name() string                   { return b.name }
func (b *background) Port() int                      { return 0 }
