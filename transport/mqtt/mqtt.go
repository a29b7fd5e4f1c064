// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mqtt connects the harness to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/absmach/brokerperf/config"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const disconnectQuiesceMS = 250

// Adapter errors.
var (
	ErrInvalidTopic = errors.New("topic cannot be empty")
	ErrInvalidQoS   = errors.New("qos must be 0, 1 or 2")
	ErrNilHandler   = errors.New("handler cannot be nil")
)

// Sender publishes messages to a single topic.
type Sender struct {
	client paho.Client
	topic  string
	qos    byte
}

// NewSender connects a publishing client.
func NewSender(ctx context.Context, cfg config.MQTTConfig, logger *slog.Logger) (*Sender, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	client, err := connect(ctx, cfg, clientID(cfg.ClientID, "pub"), logger)
	if err != nil {
		return nil, err
	}

	return &Sender{client: client, topic: cfg.Topic, qos: byte(cfg.QoS)}, nil
}

// Send publishes message and waits for the delivery flow of the configured QoS.
func (s *Sender) Send(ctx context.Context, message string) error {
	return wait(ctx, s.client.Publish(s.topic, s.qos, false, message))
}

// Close disconnects the client.
func (s *Sender) Close() error {
	s.client.Disconnect(disconnectQuiesceMS)
	return nil
}

// Consumer subscribes to the topic and reports every message to a handler.
type Consumer struct {
	client paho.Client
	topic  string
}

// NewConsumer connects a subscribing client. It returns once the broker has
// acknowledged the subscription.
func NewConsumer(ctx context.Context, cfg config.MQTTConfig, handler func(body []byte), logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	client, err := connect(ctx, cfg, clientID(cfg.ClientID, "sub"), logger)
	if err != nil {
		return nil, err
	}

	tok := client.Subscribe(cfg.Topic, byte(cfg.QoS), func(_ paho.Client, m paho.Message) {
		handler(m.Payload())
	})
	if err := wait(ctx, tok); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Topic, err)
	}

	return &Consumer{client: client, topic: cfg.Topic}, nil
}

// Close unsubscribes and disconnects.
func (c *Consumer) Close() error {
	tok := c.client.Unsubscribe(c.topic)
	tok.Wait()
	c.client.Disconnect(disconnectQuiesceMS)
	return tok.Error()
}

func connect(ctx context.Context, cfg config.MQTTConfig, id string, logger *slog.Logger) (paho.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(id)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost",
			slog.String("client_id", id),
			slog.String("error", err.Error()))
	})

	client := paho.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// wait blocks until tok completes or ctx is done.
func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validate(cfg config.MQTTConfig) error {
	if cfg.Topic == "" {
		return ErrInvalidTopic
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return ErrInvalidQoS
	}
	return nil
}

// clientID derives a unique id per role so several harness instances can share a broker.
func clientID(base, role string) string {
	if base == "" {
		base = "brokerperf"
	}
	return fmt.Sprintf("%s-%s-%s", base, role, uuid.NewString()[:8])
}
