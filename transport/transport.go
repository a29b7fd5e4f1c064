// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package transport builds the Sender and the counting consumer for the
// configured broker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/counter"
	"github.com/absmach/brokerperf/perf"
	"github.com/absmach/brokerperf/ratelimit"
	"github.com/absmach/brokerperf/transport/amqp"
	"github.com/absmach/brokerperf/transport/kafka"
	"github.com/absmach/brokerperf/transport/memory"
	"github.com/absmach/brokerperf/transport/mqtt"
	"github.com/absmach/brokerperf/transport/nats"
	"github.com/absmach/brokerperf/transport/redis"
)

// ErrUnknownTransport is returned for an unsupported transport type.
var ErrUnknownTransport = errors.New("unknown transport type")

// Pair is a ready-to-use Sender and the counter its consumer increments.
type Pair struct {
	Sender  perf.Sender
	Counter *counter.Counter

	// closers in the order they must be closed: sender, then consumer.
	closers []io.Closer
}

// Close releases the sender and the consumer.
func (p *Pair) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// New connects the consumer first, so that nothing sent is missed, then the
// sender. The sender is wrapped in the circuit breaker and the rate limiter
// when they are enabled.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("transport", cfg.Transport.Type))

	c := counter.New()
	handler := func([]byte) { c.Inc() }

	var (
		sender   sendCloser
		consumer io.Closer
		err      error
	)

	tc := cfg.Transport
	switch tc.Type {
	case config.TransportMemory:
		var b *memory.Broker
		b, err = memory.New(tc.Mem, handler)
		sender = b
	case config.TransportAMQP:
		consumer, sender, err = build(
			func() (io.Closer, error) { return amqp.NewConsumer(tc.AMQP, handler, logger) },
			func() (sendCloser, error) { return amqp.NewSender(tc.AMQP, logger) },
		)
	case config.TransportMQTT:
		consumer, sender, err = build(
			func() (io.Closer, error) { return mqtt.NewConsumer(ctx, tc.MQTT, handler, logger) },
			func() (sendCloser, error) { return mqtt.NewSender(ctx, tc.MQTT, logger) },
		)
	case config.TransportKafka:
		consumer, sender, err = build(
			func() (io.Closer, error) { return kafka.NewConsumer(tc.Kafka, handler, logger) },
			func() (sendCloser, error) { return kafka.NewSender(tc.Kafka) },
		)
	case config.TransportNATS:
		consumer, sender, err = build(
			func() (io.Closer, error) { return nats.NewConsumer(tc.NATS, handler, logger) },
			func() (sendCloser, error) { return nats.NewSender(tc.NATS, logger) },
		)
	case config.TransportRedis:
		consumer, sender, err = build(
			func() (io.Closer, error) { return redis.NewConsumer(ctx, tc.Redis, handler) },
			func() (sendCloser, error) { return redis.NewSender(ctx, tc.Redis) },
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, tc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s transport: %w", tc.Type, err)
	}

	p := &Pair{Counter: c, closers: []io.Closer{sender}}
	if consumer != nil {
		p.closers = append(p.closers, consumer)
	}

	var s perf.Sender = sender
	if cfg.Breaker.Enabled {
		s = WithBreaker(s, cfg.Transport.Type, cfg.Breaker, logger)
	}
	p.Sender = ratelimit.Wrap(s, cfg.RateLimit)

	logger.Info("transport ready",
		slog.Bool("breaker", cfg.Breaker.Enabled),
		slog.Bool("rate_limit", cfg.RateLimit.Enabled))
	return p, nil
}

type sendCloser interface {
	perf.Sender
	io.Closer
}

func build(newConsumer func() (io.Closer, error), newSender func() (sendCloser, error)) (io.Closer, sendCloser, error) {
	consumer, err := newConsumer()
	if err != nil {
		return nil, nil, fmt.Errorf("consumer: %w", err)
	}
	sender, err := newSender()
	if err != nil {
		_ = consumer.Close()
		return nil, nil, fmt.Errorf("sender: %w", err)
	}
	return consumer, sender, nil
}
