// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var errBoom = errors.New("boom")

// stubCounter is a plain counter that only supports polling.
type stubCounter struct {
	n atomic.Int64
}

func (c *stubCounter) Count() int64 {
	return c.n.Load()
}

// loopback records every message and bumps the counter from another
// goroutine, standing in for an asynchronous consumer.
type loopback struct {
	counter *stubCounter
	delay   time.Duration

	// failAt makes the n-th call (1-based) fail; 0 never fails.
	failAt int64

	calls atomic.Int64
	mu    sync.Mutex
	msgs  []string
	wg    sync.WaitGroup
}

func newLoopback(counter *stubCounter) *loopback {
	return &loopback{counter: counter, delay: time.Millisecond}
}

func (l *loopback) Send(_ context.Context, message string) error {
	call := l.calls.Add(1)
	if l.failAt > 0 && call == l.failAt {
		return errBoom
	}

	l.mu.Lock()
	l.msgs = append(l.msgs, message)
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		time.Sleep(l.delay)
		l.counter.n.Add(1)
	}()
	return nil
}

func (l *loopback) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

// syncBuffer is a bytes.Buffer safe for the concurrent reads done by tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastOptions keeps the 10 messages per user cadence but with short pauses.
func fastOptions(out io.Writer) *Options {
	return NewOptions().
		SetCadence(100, 100*time.Millisecond, 5*time.Millisecond).
		SetOut(out).
		SetLogger(quietLogger())
}
