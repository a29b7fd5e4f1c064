// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/absmach/brokerperf/otel"
	"github.com/absmach/brokerperf/perf"
	"github.com/absmach/brokerperf/results"
	"github.com/absmach/brokerperf/transport"
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel"
)

const shutdownTimeout = 5 * time.Second

func main() {
	fs := newFlagSet(flag.ExitOnError)
	_ = fs.Parse(os.Args[1:])

	cfg, err := loadConfig(fs)
	if err != nil {
		exitErr(err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	os.Exit(run(cfg, flagString(fs, "json-out"), logger))
}

func newFlagSet(handling flag.ErrorHandling) *flag.FlagSet {
	fs := flag.NewFlagSet("perf", handling)
	fs.String("config", "", "Path to configuration file")
	fs.String("mode", "", "Run mode: sequential or concurrent")
	fs.Int("messages", 0, "Messages to send in sequential mode")
	fs.Int("users", 0, "Simulated users in concurrent mode")
	fs.String("transport", "", "Transport: memory, amqp, mqtt, kafka, nats, redis")
	fs.String("json-out", "", "Append the run result as a JSON line to this file")
	return fs
}

// loadConfig reads the -config file, applies the flags given on the command
// line and validates the result.
func loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(flagString(fs, "config"))
	if err != nil {
		return nil, err
	}

	applyFlags(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags that were set. Flags left at their
// defaults keep the file values.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Run.Mode = f.Value.String()
		case "messages":
			cfg.Run.Messages = f.Value.(flag.Getter).Get().(int)
		case "users":
			cfg.Run.Users = f.Value.(flag.Getter).Get().(int)
		case "transport":
			cfg.Transport.Type = f.Value.String()
		}
	})
}

func flagString(fs *flag.FlagSet, name string) string {
	if f := fs.Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func run(cfg *config.Config, jsonOut string, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := perf.OptionsFromConfig(cfg).SetLogger(logger)

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.InitProvider(ctx, cfg.Telemetry, uuid.NewString())
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			return 2
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Error("Failed to shut down OpenTelemetry", "error", err)
			}
		}()
		slog.Info("OpenTelemetry initialized", "endpoint", cfg.Telemetry.Endpoint)

		if cfg.Telemetry.MetricsEnabled {
			m, err := otel.NewMetrics()
			if err != nil {
				slog.Error("Failed to create metrics", "error", err)
				return 2
			}
			opts.SetMetrics(m)
			slog.Info("OTel metrics enabled")
		}
		if cfg.Telemetry.TracesEnabled {
			opts.SetTracer(oteltrace.Tracer("brokerperf"))
			slog.Info("Distributed tracing enabled", "sample_rate", cfg.Telemetry.TraceSampleRate)
		}
	} else {
		slog.Debug("OpenTelemetry disabled")
	}

	store, err := results.Open(cfg.Results)
	if err != nil {
		slog.Error("Failed to open results store", "error", err)
		return 2
	}
	defer store.Close()

	pair, err := transport.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to set up transport", "error", err)
		return 1
	}
	defer func() {
		if err := pair.Close(); err != nil {
			slog.Warn("Failed to close transport", "error", err)
		}
	}()

	driver, err := perf.New(pair.Sender, pair.Counter, opts)
	if err != nil {
		slog.Error("Failed to create driver", "error", err)
		return 2
	}

	var res perf.RunResult
	var runErr error
	switch cfg.Run.Mode {
	case config.ModeSequential:
		res, runErr = driver.RunSequential(ctx, cfg.Run.Messages)
	case config.ModeConcurrent:
		res, runErr = driver.RunConcurrent(ctx, cfg.Run.Users)
	}

	if res.ID != "" {
		if err := store.Append(res); err != nil {
			slog.Error("Failed to store result", "error", err)
		}
		if jsonOut != "" {
			if err := results.NewFileStore(jsonOut).Append(res); err != nil {
				slog.Error("Failed to write json output", "error", err)
			}
		}
	}

	if runErr != nil {
		if errors.Is(runErr, perf.ErrCancelled) {
			slog.Warn("Run cancelled", "run_id", res.ID)
		}
		return 1
	}
	return 0
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	// Logs go to stderr so stdout carries only the timing report.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
