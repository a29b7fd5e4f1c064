// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/otel"
	"go.opentelemetry.io/otel/trace"
)

// Default values.
const (
	DefaultMessagePrefix     = "Test Message"
	DefaultMessagesPerSecond = 1
	DefaultUserDuration      = 10 * time.Second
	DefaultSendInterval      = 1000 * time.Millisecond
)

// Options configures a Driver.
type Options struct {
	// Concurrent cadence
	MessagesPerSecond float64
	UserDuration      time.Duration
	SendInterval      time.Duration

	// Completion
	PollInterval time.Duration
	WaitTimeout  time.Duration

	// Message bodies
	MessagePrefix string
	PayloadBytes  int

	// Transport is only used to label results and metrics.
	Transport string

	Out     io.Writer     // console report, stdout if nil
	Logger  *slog.Logger  // slog.Default() if nil
	Metrics *otel.Metrics // nil if metrics disabled
	Tracer  trace.Tracer  // nil if tracing disabled
}

// NewOptions creates Options with the default cadence:
// 10 messages per user, one second apart.
func NewOptions() *Options {
	return &Options{
		MessagesPerSecond: DefaultMessagesPerSecond,
		UserDuration:      DefaultUserDuration,
		SendInterval:      DefaultSendInterval,
		PollInterval:      DefaultPollInterval,
		MessagePrefix:     DefaultMessagePrefix,
	}
}

// OptionsFromConfig maps the harness configuration onto driver options.
func OptionsFromConfig(cfg *config.Config) *Options {
	return NewOptions().
		SetCadence(cfg.Concurrent.MessagesPerSecond, cfg.Concurrent.Duration, cfg.Concurrent.SendInterval).
		SetWait(cfg.Wait.PollInterval, cfg.Wait.Timeout).
		SetMessage(cfg.Message.Prefix, cfg.Message.PayloadBytes).
		SetTransport(cfg.Transport.Type)
}

// SetCadence sets the per-user rate, duration and pause after each send.
func (o *Options) SetCadence(messagesPerSecond float64, duration, sendInterval time.Duration) *Options {
	o.MessagesPerSecond = messagesPerSecond
	o.UserDuration = duration
	o.SendInterval = sendInterval
	return o
}

// SetWait sets the counter poll interval and the completion timeout.
func (o *Options) SetWait(pollInterval, timeout time.Duration) *Options {
	o.PollInterval = pollInterval
	o.WaitTimeout = timeout
	return o
}

// SetMessage sets the message prefix and padded payload size.
func (o *Options) SetMessage(prefix string, payloadBytes int) *Options {
	o.MessagePrefix = prefix
	o.PayloadBytes = payloadBytes
	return o
}

// SetTransport sets the transport label.
func (o *Options) SetTransport(name string) *Options {
	o.Transport = name
	return o
}

// SetOut sets the console report writer.
func (o *Options) SetOut(w io.Writer) *Options {
	o.Out = w
	return o
}

// SetLogger sets the structured logger.
func (o *Options) SetLogger(l *slog.Logger) *Options {
	o.Logger = l
	return o
}

// SetMetrics sets the metrics instruments.
func (o *Options) SetMetrics(m *otel.Metrics) *Options {
	o.Metrics = m
	return o
}

// SetTracer sets the tracer.
func (o *Options) SetTracer(t trace.Tracer) *Options {
	o.Tracer = t
	return o
}

// MessagesPerUser returns how many messages each simulated user sends.
func (o *Options) MessagesPerUser() int {
	return int(o.MessagesPerSecond*o.UserDuration.Seconds() + 0.5)
}

func (o *Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}
