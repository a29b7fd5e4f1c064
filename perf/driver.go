// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Driver generates load through a Sender and times it against a ReceivedCounter.
type Driver struct {
	sender  Sender
	counter ReceivedCounter
	waiter  *Waiter
	opts    *Options
	out     io.Writer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a driver. Collaborators are passed explicitly; opts may be nil.
func New(sender Sender, counter ReceivedCounter, opts *Options) (*Driver, error) {
	if sender == nil {
		return nil, ErrNilSender
	}
	if counter == nil {
		return nil, ErrNilCounter
	}
	if opts == nil {
		opts = NewOptions()
	}
	if opts.MessagesPerUser() < 1 || opts.SendInterval < 0 {
		return nil, ErrInvalidCadence
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("brokerperf")
	}

	return &Driver{
		sender:  sender,
		counter: counter,
		waiter:  NewWaiter(counter, opts.PollInterval, opts.WaitTimeout),
		opts:    opts,
		out:     &lockedWriter{w: opts.out()},
		logger:  logger,
		tracer:  tracer,
	}, nil
}

// RunSequential sends n messages one after another and waits until the
// counter has advanced by n. A send failure aborts the run without waiting.
func (d *Driver) RunSequential(ctx context.Context, n int) (RunResult, error) {
	if n < 0 {
		return RunResult{}, ErrInvalidCount
	}

	ctx, span := d.tracer.Start(ctx, "perf.sequential", trace.WithAttributes(
		attribute.Int("messages", n),
		attribute.String("transport", d.opts.Transport),
	))
	defer span.End()

	res := d.newResult(ModeSequential, 1, int64(n))
	d.logger.Info("starting sequential run",
		slog.String("run_id", res.ID),
		slog.Int("messages", n),
		slog.String("transport", d.opts.Transport))

	baseline := d.counter.Count()
	res.Start = time.Now()

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return d.finish(span, res, baseline, cancelled(err))
		}
		if err := d.send(ctx, i); err != nil {
			if ctx.Err() != nil {
				return d.finish(span, res, baseline, cancelled(ctx.Err()))
			}
			return d.finish(span, res, baseline, fmt.Errorf("send message %d: %w", i, err))
		}
		res.Sent++
	}

	if err := d.waiter.AwaitCount(ctx, baseline+int64(n)); err != nil {
		return d.finish(span, res, baseline, err)
	}

	res, err := d.finish(span, res, baseline, nil)
	fmt.Fprintf(d.out, "Total time taken: %d milliseconds\n", res.DurationMS)
	return res, err
}

// RunConcurrent starts one goroutine per simulated user and blocks until all
// of them finish. Each user sends MessagesPerUser messages and pauses
// SendInterval after every send. A failing user stops on its own; the others
// keep going and every user error is joined into the returned error.
func (d *Driver) RunConcurrent(ctx context.Context, users int) (RunResult, error) {
	if users < 1 {
		return RunResult{}, ErrInvalidUsers
	}

	perUser := d.opts.MessagesPerUser()

	ctx, span := d.tracer.Start(ctx, "perf.concurrent", trace.WithAttributes(
		attribute.Int("users", users),
		attribute.Int("messages_per_user", perUser),
		attribute.String("transport", d.opts.Transport),
	))
	defer span.End()

	res := d.newResult(ModeConcurrent, users, int64(users*perUser))
	d.logger.Info("starting concurrent run",
		slog.String("run_id", res.ID),
		slog.Int("users", users),
		slog.Int("messages_per_user", perUser),
		slog.Duration("send_interval", d.opts.SendInterval),
		slog.String("transport", d.opts.Transport))
	fmt.Fprintf(d.out, "Simulating %d concurrent users...\n", users)

	baseline := d.counter.Count()
	res.Start = time.Now()

	userResults := make([]UserResult, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			userResults[idx] = d.runUser(ctx, idx+1, perUser)
		}(i)
	}
	wg.Wait()

	res.UserResults = userResults
	var errs []error
	for _, u := range userResults {
		res.Sent += int64(u.Sent)
		if u.Err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", u.ID, u.Err))
		}
	}

	res, err := d.finish(span, res, baseline, errors.Join(errs...))
	fmt.Fprintf(d.out, "Time taken for %d users: %d milliseconds\n", users, res.DurationMS)
	fmt.Fprintf(d.out, "Total time taken: %d milliseconds\n", res.DurationMS)
	return res, err
}

func (d *Driver) runUser(ctx context.Context, id, messages int) UserResult {
	if d.opts.Metrics != nil {
		d.opts.Metrics.UserStarted()
		defer d.opts.Metrics.UserFinished()
	}

	u := UserResult{ID: id, Messages: messages, Start: time.Now()}
	for j := 1; j <= messages; j++ {
		if err := ctx.Err(); err != nil {
			u.Err = cancelled(err)
			break
		}
		if err := d.send(ctx, j); err != nil {
			if ctx.Err() != nil {
				u.Err = cancelled(ctx.Err())
			} else {
				u.Err = fmt.Errorf("send message %d: %w", j, err)
			}
			break
		}
		u.Sent++
		if err := pause(ctx, d.opts.SendInterval); err != nil {
			u.Err = err
			break
		}
	}
	u.End = time.Now()
	u.complete()

	if u.Err != nil {
		d.logger.Warn("simulated user stopped",
			slog.Int("user", id),
			slog.Int("sent", u.Sent),
			slog.String("error", u.Error))
		return u
	}

	fmt.Fprintf(d.out, "User %d - Average Response Time: %d milliseconds\n", id, u.AvgLatencyMS)
	return u
}

func (d *Driver) send(ctx context.Context, seq int) error {
	msg := FormatMessage(d.opts.MessagePrefix, seq, d.opts.PayloadBytes)

	start := time.Now()
	err := d.sender.Send(ctx, msg)
	if d.opts.Metrics != nil {
		d.opts.Metrics.RecordSend(d.opts.Transport, msFloat(time.Since(start)), err)
	}
	return err
}

func (d *Driver) newResult(mode Mode, users int, target int64) RunResult {
	return RunResult{
		ID:        uuid.NewString(),
		Mode:      mode,
		Transport: d.opts.Transport,
		Users:     users,
		Target:    target,
	}
}

func (d *Driver) finish(span trace.Span, res RunResult, baseline int64, err error) (RunResult, error) {
	res.End = time.Now()
	res.Received = d.counter.Count() - baseline
	res.complete(err)

	if d.opts.Metrics != nil {
		d.opts.Metrics.RecordRun(string(res.Mode), res.Transport, float64(res.DurationMS), res.Pass)
	}

	span.SetAttributes(
		attribute.String("run_id", res.ID),
		attribute.Int64("sent", res.Sent),
		attribute.Int64("received", res.Received),
		attribute.Int64("duration_ms", res.DurationMS),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("run failed",
			slog.String("run_id", res.ID),
			slog.String("mode", string(res.Mode)),
			slog.Int64("sent", res.Sent),
			slog.Int64("received", res.Received),
			slog.String("error", err.Error()))
		return res, err
	}

	d.logger.Info("run completed",
		slog.String("run_id", res.ID),
		slog.String("mode", string(res.Mode)),
		slog.Int64("sent", res.Sent),
		slog.Int64("received", res.Received),
		slog.Int64("duration_ms", res.DurationMS),
		slog.Float64("send_rate_mps", res.SendRateMPS))
	return res, nil
}

// lockedWriter serializes console lines written by concurrent users.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
}
