// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingConn logs every call made by the sender, in order.
type recordingConn struct {
	calls    []string
	flushErr error
	timeout  time.Duration
}

func (c *recordingConn) Publish(subject string, _ []byte) error {
	c.calls = append(c.calls, "publish "+subject)
	return nil
}

func (c *recordingConn) FlushWithContext(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("flush without deadline")
	}
	c.calls = append(c.calls, "flush")
	return nil
}

func (c *recordingConn) FlushTimeout(timeout time.Duration) error {
	c.calls = append(c.calls, "flush")
	c.timeout = timeout
	return c.flushErr
}

func (c *recordingConn) Close() {
	c.calls = append(c.calls, "close")
}

func TestValidation(t *testing.T) {
	_, err := NewSender(config.NATSConfig{URL: "nats://localhost:4222"}, nil)
	assert.ErrorIs(t, err, ErrInvalidSubject)

	_, err = NewConsumer(config.NATSConfig{URL: "nats://localhost:4222", Subject: "s"}, nil, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = NewConsumer(config.NATSConfig{URL: "nats://localhost:4222"}, func([]byte) {}, nil)
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestSenderSend(t *testing.T) {
	conn := &recordingConn{}
	s := &Sender{conn: conn, subject: "perf", timeout: time.Second}

	require.NoError(t, s.Send(context.Background(), "a"))
	assert.Equal(t, []string{"publish perf"}, conn.calls)

	s.flush = true
	require.NoError(t, s.Send(context.Background(), "b"))
	assert.Equal(t, []string{"publish perf", "publish perf", "flush"}, conn.calls)
}

func TestSenderCloseFlushesFirst(t *testing.T) {
	conn := &recordingConn{}
	s := &Sender{conn: conn, subject: "perf", timeout: 3 * time.Second}

	require.NoError(t, s.Send(context.Background(), "a"))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"publish perf", "flush", "close"}, conn.calls)
	assert.Equal(t, 3*time.Second, conn.timeout)
}

func TestSenderCloseFlushFails(t *testing.T) {
	errTimeout := errors.New("flush timed out")
	conn := &recordingConn{flushErr: errTimeout}
	s := &Sender{conn: conn, subject: "perf", timeout: time.Second}

	err := s.Close()
	assert.ErrorIs(t, err, errTimeout)
	// The connection is released even when the flush fails.
	assert.Equal(t, []string{"flush", "close"}, conn.calls)
}
