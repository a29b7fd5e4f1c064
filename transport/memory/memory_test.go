// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	b, err := New(config.MemConfig{Buffer: 16}, func(body []byte) {
		mu.Lock()
		got = append(got, string(body))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer b.Close()

	for i := 1; i <= 50; i++ {
		require.NoError(t, b.Send(context.Background(), fmt.Sprintf("m%d", i)))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 50
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "m1", got[0])
	assert.Equal(t, "m50", got[49])
}

func TestProcessingTime(t *testing.T) {
	var n atomic.Int64
	b, err := New(config.MemConfig{Buffer: 4, ProcessingTime: 10 * time.Millisecond}, func([]byte) {
		n.Add(1)
	})
	require.NoError(t, err)
	defer b.Close()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Send(context.Background(), "m"))
	}
	assert.Eventually(t, func() bool { return n.Load() == 4 }, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSendBlocksUntilCancelled(t *testing.T) {
	release := make(chan struct{})
	b, err := New(config.MemConfig{Buffer: 0}, func([]byte) { <-release })
	require.NoError(t, err)
	defer func() {
		close(release)
		b.Close()
	}()

	// The consumer takes the first message and blocks in the handler.
	require.NoError(t, b.Send(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Send(ctx, "second"), context.DeadlineExceeded)
}

func TestSendAfterClose(t *testing.T) {
	b, err := New(config.MemConfig{Buffer: 1}, func([]byte) {})
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Send(context.Background(), "m"), ErrClosed)
}

func TestNilHandler(t *testing.T) {
	_, err := New(config.MemConfig{}, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}
