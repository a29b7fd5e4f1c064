// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

// Transport types.
const (
	TransportMemory = "memory"
	TransportAMQP   = "amqp"
	TransportMQTT   = "mqtt"
	TransportKafka  = "kafka"
	TransportNATS   = "nats"
	TransportRedis  = "redis"
)

// Result store types.
const (
	ResultsNone   = "none"
	ResultsJSONL  = "jsonl"
	ResultsBadger = "badger"
)

// Config holds all configuration for the load harness.
type Config struct {
	Run        RunConfig        `yaml:"run"`
	Concurrent ConcurrentConfig `yaml:"concurrent"`
	Wait       WaitConfig       `yaml:"wait"`
	Message    MessageConfig    `yaml:"message"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Transport  TransportConfig  `yaml:"transport"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Results    ResultsConfig    `yaml:"results"`
}

// RunConfig selects what a single invocation does.
type RunConfig struct {
	Mode     string `yaml:"mode"`     // sequential, concurrent
	Messages int    `yaml:"messages"` // sequential message count
	Users    int    `yaml:"users"`    // concurrent simulated users
}

// ConcurrentConfig holds the cadence of every simulated user.
type ConcurrentConfig struct {
	MessagesPerSecond float64       `yaml:"messages_per_second"`
	Duration          time.Duration `yaml:"duration"`
	SendInterval      time.Duration `yaml:"send_interval"` // pause after each send
}

// MessagesPerUser returns how many messages each simulated user sends.
func (c ConcurrentConfig) MessagesPerUser() int {
	return int(c.MessagesPerSecond*c.Duration.Seconds() + 0.5)
}

// WaitConfig controls completion detection.
type WaitConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"` // 0 waits until cancelled
}

// MessageConfig shapes the generated message bodies.
type MessageConfig struct {
	Prefix       string `yaml:"prefix"`
	PayloadBytes int    `yaml:"payload_bytes"` // 0 keeps the bare message text
}

// RateLimitConfig paces sends across all simulated users.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"` // messages per second
	Burst   int     `yaml:"burst"`
}

// BreakerConfig holds circuit breaker configuration for the sender.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// TransportConfig selects and configures the broker adapter.
type TransportConfig struct {
	Type  string      `yaml:"type"`
	AMQP  AMQPConfig  `yaml:"amqp"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Kafka KafkaConfig `yaml:"kafka"`
	NATS  NATSConfig  `yaml:"nats"`
	Redis RedisConfig `yaml:"redis"`
	Mem   MemConfig   `yaml:"memory"`
}

// AMQPConfig holds AMQP 0.9.1 (RabbitMQ) settings.
type AMQPConfig struct {
	URL               string        `yaml:"url"` // overrides address/credentials/vhost
	Address           string        `yaml:"address"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	Vhost             string        `yaml:"vhost"`
	Exchange          string        `yaml:"exchange"`
	Queue             string        `yaml:"queue"`
	Durable           bool          `yaml:"durable"`
	Prefetch          int           `yaml:"prefetch"`
	PublisherConfirms bool          `yaml:"publisher_confirms"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
}

// MQTTConfig holds MQTT settings.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"` // tcp://host:port
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topic          string        `yaml:"topic"`
	QoS            int           `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	RequiredAcks int           `yaml:"required_acks"` // -1 all, 0 none, 1 leader
}

// NATSConfig holds NATS settings.
type NATSConfig struct {
	URL     string        `yaml:"url"`
	Subject string        `yaml:"subject"`
	Flush   bool          `yaml:"flush"` // flush after every publish
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis pub/sub settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// MemConfig holds settings for the in-process loopback transport.
type MemConfig struct {
	Buffer         int           `yaml:"buffer"`
	ProcessingTime time.Duration `yaml:"processing_time"` // simulated consumer work per message
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Endpoint        string  `yaml:"endpoint"` // OTLP gRPC endpoint
	ServiceName     string  `yaml:"service_name"`
	ServiceVersion  string  `yaml:"service_version"`
	MetricsEnabled  bool    `yaml:"metrics_enabled"`
	TracesEnabled   bool    `yaml:"traces_enabled"`
	TraceSampleRate float64 `yaml:"trace_sample_rate"` // 0.0 to 1.0
}

// ResultsConfig selects where finished runs are stored.
type ResultsConfig struct {
	Type string `yaml:"type"` // none, jsonl, badger
	Path string `yaml:"path"` // file for jsonl, directory for badger
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Mode:     ModeSequential,
			Messages: 1000,
			Users:    10,
		},
		Concurrent: ConcurrentConfig{
			MessagesPerSecond: 1,
			Duration:          10 * time.Second,
			SendInterval:      1000 * time.Millisecond,
		},
		Wait: WaitConfig{
			PollInterval: time.Millisecond,
			Timeout:      0,
		},
		Message: MessageConfig{
			Prefix: "Test Message",
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Rate:    1000,
			Burst:   100,
		},
		Breaker: BreakerConfig{
			Enabled:          false,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Transport: TransportConfig{
			Type: TransportMemory,
			AMQP: AMQPConfig{
				Address:     "localhost:5672",
				Username:    "guest",
				Password:    "guest",
				Vhost:       "/",
				Queue:       "perf-queue",
				Prefetch:    512,
				DialTimeout: 10 * time.Second,
				Heartbeat:   60 * time.Second,
			},
			MQTT: MQTTConfig{
				Broker:         "tcp://localhost:1883",
				ClientID:       "brokerperf",
				Topic:          "perf/messages",
				QoS:            1,
				KeepAlive:      20 * time.Second,
				ConnectTimeout: 8 * time.Second,
			},
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "perf-messages",
				GroupID:      "brokerperf",
				BatchTimeout: 10 * time.Millisecond,
				RequiredAcks: 1,
			},
			NATS: NATSConfig{
				URL:     "nats://localhost:4222",
				Subject: "perf.messages",
				Flush:   true,
				Timeout: 5 * time.Second,
			},
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Channel: "perf:messages",
			},
			Mem: MemConfig{
				Buffer: 1024,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			ServiceName:     "brokerperf",
			ServiceVersion:  "0.1.0",
			MetricsEnabled:  true,
			TracesEnabled:   false,
			TraceSampleRate: 0.1,
		},
		Results: ResultsConfig{
			Type: ResultsNone,
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Run.Mode {
	case ModeSequential, ModeConcurrent:
	default:
		return fmt.Errorf("run.mode must be one of: sequential, concurrent")
	}
	if c.Run.Messages < 0 {
		return fmt.Errorf("run.messages cannot be negative")
	}
	if c.Run.Users < 1 {
		return fmt.Errorf("run.users must be at least 1")
	}

	if c.Concurrent.MessagesPerSecond <= 0 {
		return fmt.Errorf("concurrent.messages_per_second must be positive")
	}
	if c.Concurrent.Duration <= 0 {
		return fmt.Errorf("concurrent.duration must be positive")
	}
	if c.Concurrent.MessagesPerUser() < 1 {
		return fmt.Errorf("concurrent.messages_per_second x concurrent.duration must yield at least 1 message")
	}
	if c.Concurrent.SendInterval < 0 {
		return fmt.Errorf("concurrent.send_interval cannot be negative")
	}

	if c.Wait.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be positive")
	}
	if c.Wait.Timeout < 0 {
		return fmt.Errorf("wait.timeout cannot be negative")
	}

	if c.Message.PayloadBytes < 0 {
		return fmt.Errorf("message.payload_bytes cannot be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate_limit.rate must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("rate_limit.burst must be at least 1")
		}
	}

	if c.Breaker.Enabled {
		if c.Breaker.FailureThreshold < 1 {
			return fmt.Errorf("breaker.failure_threshold must be at least 1")
		}
		if c.Breaker.ResetTimeout < time.Second {
			return fmt.Errorf("breaker.reset_timeout must be at least 1 second")
		}
	}

	if err := c.Transport.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint cannot be empty when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry.service_name cannot be empty when telemetry is enabled")
		}
		if c.Telemetry.TraceSampleRate < 0.0 || c.Telemetry.TraceSampleRate > 1.0 {
			return fmt.Errorf("telemetry.trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	switch c.Results.Type {
	case ResultsNone:
	case ResultsJSONL, ResultsBadger:
		if c.Results.Path == "" {
			return fmt.Errorf("results.path required when results.type is %s", c.Results.Type)
		}
	default:
		return fmt.Errorf("results.type must be one of: none, jsonl, badger")
	}

	return nil
}

// Validate checks the settings of the selected transport only.
func (t TransportConfig) Validate() error {
	switch t.Type {
	case TransportMemory:
		if t.Mem.Buffer < 0 {
			return fmt.Errorf("transport.memory.buffer cannot be negative")
		}
	case TransportAMQP:
		if t.AMQP.URL == "" && t.AMQP.Address == "" {
			return fmt.Errorf("transport.amqp.url or transport.amqp.address required")
		}
		if t.AMQP.Queue == "" {
			return fmt.Errorf("transport.amqp.queue cannot be empty")
		}
	case TransportMQTT:
		if t.MQTT.Broker == "" {
			return fmt.Errorf("transport.mqtt.broker cannot be empty")
		}
		if t.MQTT.Topic == "" {
			return fmt.Errorf("transport.mqtt.topic cannot be empty")
		}
		if t.MQTT.QoS < 0 || t.MQTT.QoS > 2 {
			return fmt.Errorf("transport.mqtt.qos must be 0, 1 or 2")
		}
	case TransportKafka:
		if len(t.Kafka.Brokers) == 0 {
			return fmt.Errorf("transport.kafka.brokers cannot be empty")
		}
		if t.Kafka.Topic == "" {
			return fmt.Errorf("transport.kafka.topic cannot be empty")
		}
		if t.Kafka.RequiredAcks < -1 || t.Kafka.RequiredAcks > 1 {
			return fmt.Errorf("transport.kafka.required_acks must be -1, 0 or 1")
		}
	case TransportNATS:
		if t.NATS.URL == "" {
			return fmt.Errorf("transport.nats.url cannot be empty")
		}
		if t.NATS.Subject == "" {
			return fmt.Errorf("transport.nats.subject cannot be empty")
		}
	case TransportRedis:
		if t.Redis.Addr == "" {
			return fmt.Errorf("transport.redis.addr cannot be empty")
		}
		if t.Redis.Channel == "" {
			return fmt.Errorf("transport.redis.channel cannot be empty")
		}
	default:
		return fmt.Errorf("transport.type must be one of: memory, amqp, mqtt, kafka, nats, redis")
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
