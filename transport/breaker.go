// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/perf"
	"github.com/sony/gobreaker"
)

// breakerSender stops calling a failing broker once FailureThreshold
// consecutive sends fail, and tries it again after ResetTimeout.
type breakerSender struct {
	next perf.Sender
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next in a circuit breaker. While the breaker is open Send
// fails fast with gobreaker.ErrOpenState.
func WithBreaker(next perf.Sender, name string, cfg config.BreakerConfig, logger *slog.Logger) perf.Sender {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("sender circuit breaker state changed",
				slog.String("transport", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &breakerSender{next: next, cb: cb}
}

func (b *breakerSender) Send(ctx context.Context, message string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, message)
	})
	return err
}
