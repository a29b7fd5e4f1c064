// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingSender(n *atomic.Int64) perf.Sender {
	return perf.SenderFunc(func(context.Context, string) error {
		n.Add(1)
		return nil
	})
}

func TestSenderPaces(t *testing.T) {
	var sent atomic.Int64
	s := NewSender(countingSender(&sent), 100, 1)

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Send(context.Background(), "m"))
	}

	// One token up front, five more at 10ms each.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, int64(6), sent.Load())
}

func TestSenderBurst(t *testing.T) {
	var sent atomic.Int64
	s := NewSender(countingSender(&sent), 1, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Send(context.Background(), "m"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSenderCancelled(t *testing.T) {
	var sent atomic.Int64
	s := NewSender(countingSender(&sent), 0.5, 1)
	require.NoError(t, s.Send(context.Background(), "m"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, "m")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), sent.Load())
}

func TestWrap(t *testing.T) {
	var sent atomic.Int64
	next := countingSender(&sent)

	got := Wrap(next, config.RateLimitConfig{Enabled: false, Rate: 10, Burst: 1})
	_, limited := got.(*Sender)
	assert.False(t, limited)

	got = Wrap(next, config.RateLimitConfig{Enabled: true, Rate: 10, Burst: 0})
	s, ok := got.(*Sender)
	require.True(t, ok)
	assert.Equal(t, 10.0, s.Limit())
}
