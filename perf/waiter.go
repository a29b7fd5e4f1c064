// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is used when the waiter has to poll the counter.
const DefaultPollInterval = time.Millisecond

// Waiter blocks until a ReceivedCounter reaches a target.
type Waiter struct {
	counter      ReceivedCounter
	pollInterval time.Duration
	timeout      time.Duration
}

// NewWaiter creates a waiter. A zero timeout waits until ctx is done.
func NewWaiter(counter ReceivedCounter, pollInterval, timeout time.Duration) *Waiter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Waiter{
		counter:      counter,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// AwaitCount returns nil once the counter reports at least target.
// It returns an error wrapping ErrWaitTimeout when the waiter's own timeout
// elapses first, and one wrapping ErrCancelled when ctx is done first.
func (w *Waiter) AwaitCount(ctx context.Context, target int64) error {
	if w.counter.Count() >= target {
		return nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, w.timeout, ErrWaitTimeout)
		defer cancel()
	}

	if n, ok := w.counter.(Notifier); ok {
		reached, stop := n.Reached(target)
		defer stop()

		select {
		case <-reached:
			return nil
		case <-ctx.Done():
			return w.interrupted(ctx, target)
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.counter.Count() >= target {
				return nil
			}
		case <-ctx.Done():
			return w.interrupted(ctx, target)
		}
	}
}

func (w *Waiter) interrupted(ctx context.Context, target int64) error {
	got := w.counter.Count()
	if got >= target {
		return nil
	}

	cause := context.Cause(ctx)
	if errors.Is(cause, ErrWaitTimeout) {
		return fmt.Errorf("%w after %s: received %d of %d", ErrWaitTimeout, w.timeout, got, target)
	}
	return fmt.Errorf("%w: received %d of %d: %w", ErrCancelled, got, target, cause)
}
