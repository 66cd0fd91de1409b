package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateNilNeverWaits(t *testing.T) {
	g := NewGate(0)
	assert.Nil(t, g)
	assert.NoError(t, g.Wait(context.Background()))
}

func TestGateSpacesConcurrentCallers(t *testing.T) {
	g := NewGate(30 * time.Millisecond)
	require.NotNil(t, g)

	start := time.Now()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Wait(context.Background()))
		}()
	}
	wg.Wait()

	// First dispatch is immediate, the other three are spaced
	assert.GreaterOrEqual(t, time.Since(start), 85*time.Millisecond)
}

func TestGateHonoursCancellation(t *testing.T) {
	g := NewGate(time.Hour)
	require.NoError(t, g.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, g.Wait(ctx))
}
