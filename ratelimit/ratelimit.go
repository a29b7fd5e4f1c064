// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit paces sends with a token bucket shared by every simulated user.
package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/perf"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a send could not get a token before ctx ended.
var ErrRateLimited = errors.New("rate limit wait interrupted")

// Sender delays each Send until the limiter grants a token.
type Sender struct {
	next    perf.Sender
	limiter *rate.Limiter
}

var _ perf.Sender = (*Sender)(nil)

// NewSender wraps next with a limiter allowing r sends per second and the given burst.
// A burst below 1 is raised to 1 so that Wait can make progress.
func NewSender(next perf.Sender, r float64, burst int) *Sender {
	if burst < 1 {
		burst = 1
	}
	return &Sender{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(r), burst),
	}
}

// Wrap applies cfg to next. It returns next unchanged when rate limiting is disabled.
func Wrap(next perf.Sender, cfg config.RateLimitConfig) perf.Sender {
	if !cfg.Enabled {
		return next
	}
	return NewSender(next, cfg.Rate, cfg.Burst)
}

// Send waits for a token and forwards the message.
func (s *Sender) Send(ctx context.Context, message string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return s.next.Send(ctx, message)
}

// Limit returns the configured sends per second.
func (s *Sender) Limit() float64 {
	return float64(s.limiter.Limit())
}
