package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulate(t *testing.T) {
	c := New()
	c.IncSessionsCreated()
	c.IncSessionsCreated()
	c.IncRoomsCreated()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.SessionsCreated)
	assert.Equal(t, int64(1), snap.RoomsCreated)
	assert.Zero(t, snap.GamesCompleted)
}

func TestCountersConcurrentIncrements(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncFramesReceived()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), c.Snapshot().FramesReceived)
}
