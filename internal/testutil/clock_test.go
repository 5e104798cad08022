package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtGivenTime(t *testing.T) {
	c := NewManualClock(1_700_000_000)
	assert.Equal(t, int64(1_700_000_000), c.Now())
}

func TestManualClock_Advance(t *testing.T) {
	c := NewManualClock(100)
	assert.Equal(t, int64(160), c.Advance(60))
	assert.Equal(t, int64(160), c.Now())
}

func TestManualClock_NeverGoesBackwards(t *testing.T) {
	c := NewManualClock(100)
	c.Advance(-50)
	assert.Equal(t, int64(100), c.Now())
	c.Set(10)
	assert.Equal(t, int64(100), c.Now())
	c.Set(500)
	assert.Equal(t, int64(500), c.Now())
}

func TestManualClock_ConcurrentAdvance(t *testing.T) {
	c := NewManualClock(0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), c.Now())
}
