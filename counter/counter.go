// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package counter provides the in-process received-message counter that
// transport consumers increment.
package counter

import (
	"sync"
	"sync/atomic"

	"github.com/absmach/brokerperf/perf"
)

// Counter is a monotonically increasing message tally that signals waiters
// once a target is reached.
type Counter struct {
	n atomic.Int64

	mu      sync.Mutex
	waiters []waiter
}

type waiter struct {
	target int64
	ch     chan struct{}
}

var (
	_ perf.ReceivedCounter = (*Counter)(nil)
	_ perf.Notifier        = (*Counter)(nil)
)

// New creates a counter starting at zero.
func New() *Counter {
	return &Counter{}
}

// Inc records one received message.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add records delta received messages. Non-positive deltas are ignored.
func (c *Counter) Add(delta int64) {
	if delta <= 0 {
		return
	}
	v := c.n.Add(delta)

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if v >= w.target {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	clear(c.waiters[len(kept):])
	c.waiters = kept
}

// Count returns the number of messages received so far.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// Reached returns a channel closed once Count() >= target, and a stop func
// that drops the registration for callers that stop waiting early.
func (c *Counter) Reached(target int64) (<-chan struct{}, func()) {
	ch := make(chan struct{})

	c.mu.Lock()
	defer c.mu.Unlock()

	// Checked under the lock so an Add racing with registration cannot be missed.
	if c.n.Load() >= target {
		close(ch)
		return ch, func() {}
	}
	c.waiters = append(c.waiters, waiter{target: target, ch: ch})
	return ch, func() { c.remove(ch) }
}

// Waiting returns the number of registered waiters whose target is not reached.
func (c *Counter) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Counter) remove(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w.ch == ch {
			last := len(c.waiters) - 1
			c.waiters[i] = c.waiters[last]
			c.waiters[last] = waiter{}
			c.waiters = c.waiters[:last]
			return
		}
	}
}
