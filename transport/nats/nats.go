// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package nats connects the harness to a NATS server.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/nats-io/nats.go"
)

const defaultTimeout = 5 * time.Second

// Adapter errors.
var (
	ErrInvalidSubject = errors.New("subject cannot be empty")
	ErrNilHandler     = errors.New("handler cannot be nil")
)

// publisher is the part of *nats.Conn the sender uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Sender publishes messages to a subject.
type Sender struct {
	conn    publisher
	subject string
	flush   bool
	timeout time.Duration
}

// NewSender connects a publishing client.
func NewSender(cfg config.NATSConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Subject == "" {
		return nil, ErrInvalidSubject
	}

	conn, err := connect(cfg, "brokerperf-pub", logger)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sender{conn: conn, subject: cfg.Subject, flush: cfg.Flush, timeout: timeout}, nil
}

// Send publishes message. With flush enabled it also waits for the server to
// process everything published so far.
func (s *Sender) Send(ctx context.Context, message string) error {
	if err := s.conn.Publish(s.subject, []byte(message)); err != nil {
		return err
	}
	if !s.flush {
		return nil
	}

	// FlushWithContext requires a deadline.
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conn.FlushWithContext(ctx)
}

// Close waits until the server has acknowledged every pending publish and
// then closes the connection. The connection is closed even if the flush fails.
func (s *Sender) Close() error {
	err := s.conn.FlushTimeout(s.timeout)
	s.conn.Close()
	if err != nil {
		return fmt.Errorf("flush pending publishes: %w", err)
	}
	return nil
}

// Consumer subscribes to the subject and reports every message to a handler.
type Consumer struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewConsumer subscribes and returns once the server has registered the subscription.
func NewConsumer(cfg config.NATSConfig, handler func(body []byte), logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if cfg.Subject == "" {
		return nil, ErrInvalidSubject
	}

	conn, err := connect(cfg, "brokerperf-sub", logger)
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(cfg.Subject, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	return &Consumer{conn: conn, sub: sub}, nil
}

// Close unsubscribes and closes the connection.
func (c *Consumer) Close() error {
	err := c.sub.Unsubscribe()
	c.conn.Close()
	return err
}

func connect(cfg config.NATSConfig, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("name", name), slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("name", name), slog.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}
	return conn, nil
}
