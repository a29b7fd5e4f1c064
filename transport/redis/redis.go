// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package redis uses Redis pub/sub as the broker under test.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/absmach/brokerperf/config"
	"github.com/redis/go-redis/v9"
)

// Adapter errors.
var (
	ErrInvalidChannel = errors.New("channel cannot be empty")
	ErrNilHandler     = errors.New("handler cannot be nil")
)

// Sender publishes messages to a channel.
type Sender struct {
	client  *redis.Client
	channel string
}

// NewSender connects and pings the server.
func NewSender(ctx context.Context, cfg config.RedisConfig) (*Sender, error) {
	if cfg.Channel == "" {
		return nil, ErrInvalidChannel
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Sender{client: client, channel: cfg.Channel}, nil
}

// Send publishes message. Redis drops messages nobody is subscribed to, so
// the consumer must be running before the first send.
func (s *Sender) Send(ctx context.Context, message string) error {
	return s.client.Publish(ctx, s.channel, message).Err()
}

// Close closes the client.
func (s *Sender) Close() error {
	return s.client.Close()
}

// Consumer subscribes to the channel and reports every message to a handler.
type Consumer struct {
	client *redis.Client
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// NewConsumer subscribes and returns once the subscription is confirmed.
func NewConsumer(ctx context.Context, cfg config.RedisConfig, handler func(body []byte)) (*Consumer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if cfg.Channel == "" {
		return nil, ErrInvalidChannel
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pubsub := client.Subscribe(ctx, cfg.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Channel, err)
	}

	c := &Consumer{client: client, pubsub: pubsub, done: make(chan struct{})}
	msgs := pubsub.Channel()
	go func() {
		defer close(c.done)
		for m := range msgs {
			handler([]byte(m.Payload))
		}
	}()

	return c, nil
}

// Close unsubscribes and waits for the delivery loop to stop.
func (c *Consumer) Close() error {
	var err error
	c.once.Do(func() {
		err = c.pubsub.Close()
		<-c.done
		if cerr := c.client.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
