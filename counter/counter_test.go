// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package counter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/absmach/brokerperf/perf"
	"github.com/stretchr/testify/assert"
)

func reached(c *Counter, target int64) <-chan struct{} {
	ch, _ := c.Reached(target)
	return ch
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestCounterAdd(t *testing.T) {
	c := New()
	c.Inc()
	c.Add(4)
	c.Add(0)
	c.Add(-3)
	assert.Equal(t, int64(5), c.Count())
}

func TestCounterConcurrentInc(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), c.Count())
}

func TestReached(t *testing.T) {
	c := New()

	assert.True(t, closed(reached(c, 0)))

	two := reached(c, 2)
	five := reached(c, 5)
	assert.False(t, closed(two))

	c.Inc()
	assert.False(t, closed(two))
	c.Inc()
	assert.True(t, closed(two))
	assert.False(t, closed(five))

	c.Add(10)
	assert.True(t, closed(five))
	assert.True(t, closed(reached(c, 12)))
}

func TestReachedFromOtherGoroutine(t *testing.T) {
	c := New()
	ch := reached(c, 100)

	go func() {
		for i := 0; i < 100; i++ {
			c.Inc()
		}
	}()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("target never signalled")
	}
	assert.GreaterOrEqual(t, c.Count(), int64(100))
}

func TestReachedStop(t *testing.T) {
	c := New()

	ch, stop := c.Reached(3)
	_, keep := c.Reached(5)
	assert.Equal(t, 2, c.Waiting())

	stop()
	stop()
	assert.Equal(t, 1, c.Waiting())

	c.Add(5)
	assert.False(t, closed(ch), "stopped waiter must not be signalled")
	assert.Equal(t, 0, c.Waiting())
	keep()

	_, done := c.Reached(1)
	done()
	assert.Equal(t, 0, c.Waiting())
}

func TestAbandonedWaitsAreReleased(t *testing.T) {
	c := New()
	w := perf.NewWaiter(c, 0, 0)

	for i := 0; i < 1000; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
		err := w.AwaitCount(ctx, 1)
		cancel()
		assert.ErrorIs(t, err, perf.ErrCancelled)
	}
	assert.Equal(t, 0, c.Waiting())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, perf.NewWaiter(c, 0, time.Millisecond).AwaitCount(ctx, 1), perf.ErrWaitTimeout)
	assert.Equal(t, 0, c.Waiting())
}
