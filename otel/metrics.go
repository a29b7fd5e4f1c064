// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OpenTelemetry metric instruments for the load harness.
type Metrics struct {
	meter metric.Meter

	messagesSent metric.Int64Counter
	sendErrors   metric.Int64Counter
	usersActive  metric.Int64UpDownCounter
	sendDuration metric.Float64Histogram
	runDuration  metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance using the global meter provider.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("brokerperf"),
	}

	var err error

	m.messagesSent, err = m.meter.Int64Counter(
		"perf.messages.sent.total",
		metric.WithDescription("Total messages handed to the sender successfully"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesSent counter: %w", err)
	}

	m.sendErrors, err = m.meter.Int64Counter(
		"perf.send.errors.total",
		metric.WithDescription("Total failed sends"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendErrors counter: %w", err)
	}

	m.usersActive, err = m.meter.Int64UpDownCounter(
		"perf.users.active",
		metric.WithDescription("Number of simulated users currently sending"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create usersActive gauge: %w", err)
	}

	m.sendDuration, err = m.meter.Float64Histogram(
		"perf.send.duration",
		metric.WithDescription("Duration of a single send call"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendDuration histogram: %w", err)
	}

	m.runDuration, err = m.meter.Float64Histogram(
		"perf.run.duration",
		metric.WithDescription("Wall-clock duration of a whole test run"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runDuration histogram: %w", err)
	}

	return m, nil
}

// RecordSend records the outcome of one send call.
func (m *Metrics) RecordSend(transport string, durationMs float64, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("transport", transport))
	m.sendDuration.Record(ctx, durationMs, attrs)
	if err != nil {
		m.sendErrors.Add(ctx, 1, attrs)
		return
	}
	m.messagesSent.Add(ctx, 1, attrs)
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(mode, transport string, durationMs float64, pass bool) {
	m.runDuration.Record(context.Background(), durationMs, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("transport", transport),
		attribute.Bool("pass", pass),
	))
}

// UserStarted records a simulated user starting its message loop.
func (m *Metrics) UserStarted() {
	m.usersActive.Add(context.Background(), 1)
}

// UserFinished records a simulated user leaving its message loop.
func (m *Metrics) UserFinished() {
	m.usersActive.Add(context.Background(), -1)
}
