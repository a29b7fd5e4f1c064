// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package kafka connects the harness to a Kafka cluster.
package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/brokerperf/config"
	kafkago "github.com/segmentio/kafka-go"
)

const readRetryDelay = 100 * time.Millisecond

// Adapter errors.
var (
	ErrNoBrokers    = errors.New("no kafka brokers configured")
	ErrInvalidTopic = errors.New("topic cannot be empty")
	ErrNilHandler   = errors.New("handler cannot be nil")
)

// Sender writes each message to the topic. Every Send is synchronous: it
// returns after the writer's batch containing the message is acknowledged.
type Sender struct {
	writer *kafkago.Writer
}

// NewSender creates a writer for the configured topic.
func NewSender(cfg config.KafkaConfig) (*Sender, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &Sender{writer: &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.LeastBytes{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
	}}, nil
}

// Send writes message.
func (s *Sender) Send(ctx context.Context, message string) error {
	return s.writer.WriteMessages(ctx, kafkago.Message{Value: []byte(message)})
}

// Close flushes pending writes and closes the writer.
func (s *Sender) Close() error {
	return s.writer.Close()
}

// Consumer reads the topic as a member of the configured consumer group.
type Consumer struct {
	reader *kafkago.Reader
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewConsumer starts reading from the latest offset.
func NewConsumer(cfg config.KafkaConfig, handler func(body []byte), logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafkago.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{reader: reader, cancel: cancel}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, handler, logger)
	}()

	return c, nil
}

func (c *Consumer) consume(ctx context.Context, handler func([]byte), logger *slog.Logger) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			logger.Warn("kafka read failed", slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		handler(m.Value)
	}
}

// Close stops the read loop and leaves the group.
func (c *Consumer) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
		err = c.reader.Close()
	})
	return err
}

func validate(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return ErrNoBrokers
	}
	if cfg.Topic == "" {
		return ErrInvalidTopic
	}
	return nil
}
