package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name    string
	port    int
	failErr error

	started atomic.Bool
	stops   atomic.Int32
	order   *stopOrder
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeComponent) Serve(ctx context.Context) error {
	f.started.Store(true)
	if f.failErr != nil {
		return f.failErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeComponent) Stop(context.Context) error {
	f.stops.Add(1)
	if f.order != nil {
		f.order.mu.Lock()
		f.order.names = append(f.order.names, f.name)
		f.order.mu.Unlock()
	}
	return nil
}

func (f *fakeComponent) Name() string { return f.name }
func (f *fakeComponent) Port() int    { return f.port }

func TestAdd_Validation(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultStopTimeout, s.stopTimeout)

	require.NoError(t, s.Add(&fakeComponent{name: "api", port: 8080}))
	require.NoError(t, s.Add(&fakeComponent{name: "sweeper"}))
	require.NoError(t, s.Add(&fakeComponent{name: "other"}), "port 0 never collides")

	assert.Error(t, s.Add(&fakeComponent{name: "api", port: 8081}))
	assert.Error(t, s.Add(&fakeComponent{name: "metrics", port: 8080}))
	assert.Error(t, s.Add(nil))
	assert.Len(t, s.Components(), 3)
}

func TestServe_NoComponents(t *testing.T) {
	assert.Error(t, New(0).Serve(context.Background()))
}

func TestServe_CancelStopsAllInReverseOrder(t *testing.T) {
	order := &stopOrder{}
	a := &fakeComponent{name: "a", port: 1, order: order}
	b := &fakeComponent{name: "b", port: 2, order: order}

	s := New(time.Second)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	assert.Eventually(t, func() bool { return a.started.Load() && b.started.Load() },
		time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, []string{"b", "a"}, order.names)

	assert.ErrorIs(t, s.Serve(context.Background()), ErrAlreadyServed)
	assert.ErrorIs(t, s.Add(&fakeComponent{name: "late"}), ErrAlreadyServed)
}

func TestServe_FailureStopsOthers(t *testing.T) {
	boom := errors.New("bind: address in use")
	healthy := &fakeComponent{name: "metrics", port: 9090}
	broken := &fakeComponent{name: "api", port: 8080, failErr: boom}

	s := New(time.Second)
	require.NoError(t, s.Add(healthy))
	require.NoError(t, s.Add(broken))

	err := s.Serve(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "api")
	assert.Equal(t, int32(1), healthy.stops.Load())
}

type fakeWorker struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (w *fakeWorker) Start()                     { w.starts.Add(1) }
func (w *fakeWorker) Stop(context.Context) error { w.stops.Add(1); return nil }

func TestBackground(t *testing.T) {
	w := &fakeWorker{}
	c := Background("sweeper", w)
	assert.Equal(t, "sweeper", c.Name())
	assert.Equal(t, 0, c.Port())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	assert.Eventually(t, func() bool { return w.starts.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, int32(1), w.stops.Load())
}
