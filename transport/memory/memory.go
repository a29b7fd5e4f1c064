// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package memory is an in-process loopback broker. Sends are queued on a
// buffered channel and a single consumer goroutine hands them to a handler,
// optionally spending a fixed processing time on each.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/absmach/brokerperf/config"
)

// Broker errors.
var (
	ErrClosed     = errors.New("memory broker closed")
	ErrNilHandler = errors.New("handler cannot be nil")
)

// Broker is both the Sender and the consuming side.
type Broker struct {
	queue      chan string
	processing time.Duration
	handler    func(body []byte)

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New starts the consumer goroutine.
func New(cfg config.MemConfig, handler func(body []byte)) (*Broker, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}

	b := &Broker{
		queue:      make(chan string, cfg.Buffer),
		processing: cfg.ProcessingTime,
		handler:    handler,
		done:       make(chan struct{}),
	}

	b.wg.Add(1)
	go b.consume()
	return b, nil
}

// Send enqueues message. It blocks while the buffer is full.
func (b *Broker) Send(ctx context.Context, message string) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case b.queue <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

// Close stops the consumer. Messages still queued are dropped.
func (b *Broker) Close() error {
	b.once.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
	return nil
}

func (b *Broker) consume() {
	defer b.wg.Done()

	var timer *time.Timer
	if b.processing > 0 {
		timer = time.NewTimer(b.processing)
		timer.Stop()
		defer timer.Stop()
	}

	for {
		select {
		case <-b.done:
			return
		case msg := <-b.queue:
			if timer != nil {
				timer.Reset(b.processing)
				select {
				case <-timer.C:
				case <-b.done:
					return
				}
			}
			b.handler([]byte(msg))
		}
	}
}
