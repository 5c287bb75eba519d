package snapshot

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectives_ConsumedExactlyOnce(t *testing.T) {
	d := NewDirectives()

	d.Suppress(7)
	d.ForceSnapshot(7)

	assert.True(t, d.ConsumeSuppressed(7))
	assert.False(t, d.ConsumeSuppressed(7))
	assert.True(t, d.ConsumeForceSnapshot(7))
	assert.False(t, d.ConsumeForceSnapshot(7))
}

func TestDirectives_Independent(t *testing.T) {
	d := NewDirectives()

	d.Suppress(1)
	d.ForceSnapshot(2)

	assert.False(t, d.ConsumeForceSnapshot(1))
	assert.False(t, d.ConsumeSuppressed(2))
	assert.True(t, d.ConsumeSuppressed(1))
	assert.True(t, d.ConsumeForceSnapshot(2))
}

func TestDirectives_Clear(t *testing.T) {
	d := NewDirectives()

	assert.False(t, d.Clear(3))

	d.ForceSnapshot(3)
	assert.True(t, d.Clear(3))
	assert.False(t, d.ConsumeForceSnapshot(3))
	assert.False(t, d.Clear(3))
}

func TestDirectives_ConcurrentConsumers(t *testing.T) {
	d := NewDirectives()
	d.Suppress(42)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.ConsumeSuppressed(42) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
