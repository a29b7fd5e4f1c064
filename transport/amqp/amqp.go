// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package amqp connects the harness to an AMQP 0.9.1 broker such as RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/brokerperf/config"
	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// Sender publishes every message to the configured queue, either directly or
// through the configured exchange.
type Sender struct {
	cfg    config.AMQPConfig
	logger *slog.Logger

	conn *amqp091.Connection
	ch   *amqp091.Channel
	chMu sync.Mutex

	closed atomic.Bool
}

// NewSender dials the broker, declares the queue and optionally enables
// publisher confirms.
func NewSender(cfg config.AMQPConfig, logger *slog.Logger) (*Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, ch, err := open(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.PublisherConfirms {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("enable publisher confirms: %w", err)
		}
	}

	s := &Sender{cfg: cfg, logger: logger, conn: conn, ch: ch}
	watchClose(conn, logger, "sender")
	return s, nil
}

// Send publishes message. With publisher confirms enabled it blocks until the
// broker acknowledges the message or ctx is done.
func (s *Sender) Send(ctx context.Context, message string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	pub := amqp091.Publishing{
		ContentType: "text/plain",
		Timestamp:   time.Now(),
		Body:        []byte(message),
	}
	if s.cfg.Durable {
		pub.DeliveryMode = amqp091.Persistent
	}

	if !s.cfg.PublisherConfirms {
		s.chMu.Lock()
		defer s.chMu.Unlock()
		return s.ch.PublishWithContext(ctx, s.cfg.Exchange, s.cfg.Queue, false, false, pub)
	}

	s.chMu.Lock()
	dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, s.cfg.Exchange, s.cfg.Queue, false, false, pub)
	s.chMu.Unlock()
	if err != nil {
		return err
	}

	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPublisherConfirm
	}
	return nil
}

// Close closes the channel and the connection.
func (s *Sender) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.chMu.Lock()
	defer s.chMu.Unlock()
	_ = s.ch.Close()
	return s.conn.Close()
}

// Consumer acknowledges every delivery from the queue and reports it to a handler.
type Consumer struct {
	logger *slog.Logger

	conn *amqp091.Connection
	ch   *amqp091.Channel
	tag  string

	done      chan struct{}
	closeOnce sync.Once
}

// NewConsumer opens a dedicated connection, declares the queue and starts
// consuming. handler is called once per delivery, before the ack.
func NewConsumer(cfg config.AMQPConfig, handler func(body []byte), logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, ch, err := open(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}

	tag := "brokerperf-" + uuid.NewString()
	deliveries, err := ch.Consume(cfg.Queue, tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("consume %s: %w", cfg.Queue, err)
	}

	c := &Consumer{
		logger: logger,
		conn:   conn,
		ch:     ch,
		tag:    tag,
		done:   make(chan struct{}),
	}
	watchClose(conn, logger, "consumer")

	go func() {
		defer close(c.done)
		for d := range deliveries {
			handler(d.Body)
			if err := d.Ack(false); err != nil {
				logger.Warn("amqp ack failed", slog.String("error", err.Error()))
			}
		}
	}()

	return c, nil
}

// Close cancels the consumer and waits for in-flight deliveries to drain.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.ch.Cancel(c.tag, false)
		_ = c.ch.Close()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func open(cfg config.AMQPConfig) (*amqp091.Connection, *amqp091.Channel, error) {
	if cfg.Queue == "" {
		return nil, nil, ErrInvalidQueueName
	}

	u, err := dialURL(cfg)
	if err != nil {
		return nil, nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := amqp091.DialConfig(u, amqp091.Config{
		Heartbeat: cfg.Heartbeat,
		Dial:      dialer.Dial,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}

	return conn, ch, nil
}

// declare creates the queue and, when an exchange is configured, binds it
// using the queue name as routing key.
func declare(ch *amqp091.Channel, cfg config.AMQPConfig) error {
	if _, err := ch.QueueDeclare(cfg.Queue, cfg.Durable, !cfg.Durable, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if cfg.Exchange == "" {
		return nil
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp091.ExchangeDirect, cfg.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.Queue, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

func dialURL(cfg config.AMQPConfig) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	if cfg.Address == "" {
		return "", ErrNoAddress
	}

	u := &url.URL{
		Scheme: "amqp",
		Host:   cfg.Address,
		Path:   "/" + strings.TrimPrefix(cfg.Vhost, "/"),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String(), nil
}

func watchClose(conn *amqp091.Connection, logger *slog.Logger, role string) {
	closeCh := conn.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		// A graceful Close delivers nil.
		if err, ok := <-closeCh; ok && err != nil {
			logger.Warn("amqp connection lost",
				slog.String("role", role),
				slog.String("error", err.Error()))
		}
	}()
}

