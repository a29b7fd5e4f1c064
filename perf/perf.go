// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package perf drives load through a message broker and measures how long the
// receiving side takes to observe it.
//
// The package never talks to a broker itself. A Sender dispatches one message
// into the system under test and a ReceivedCounter reports how many messages
// the consuming side has processed so far. The Driver times the sends and uses
// a Waiter to detect completion.
package perf

import (
	"context"
	"errors"
	"fmt"
)

// Sender dispatches one message into the messaging system under test.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// ReceivedCounter reports how many messages the receiving side has processed.
// The count must never decrease.
type ReceivedCounter interface {
	Count() int64
}

// Notifier is implemented by counters that can signal when a target is reached.
// The returned channel is closed once Count() >= target. Calling stop releases
// the registration when the caller gives up waiting; it is safe to call more
// than once and after the channel is closed.
type Notifier interface {
	Reached(target int64) (ch <-chan struct{}, stop func())
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, message string) error

// Send calls f(ctx, message).
func (f SenderFunc) Send(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Errors returned by the driver and waiter.
var (
	ErrCancelled      = errors.New("run cancelled")
	ErrWaitTimeout    = errors.New("timed out waiting for received messages")
	ErrNilSender      = errors.New("sender cannot be nil")
	ErrNilCounter     = errors.New("counter cannot be nil")
	ErrInvalidCount   = errors.New("message count cannot be negative")
	ErrInvalidUsers   = errors.New("user count must be at least 1")
	ErrInvalidCadence = errors.New("messages per user must be at least 1 and send interval cannot be negative")
)

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
