// Package queue publishes task mutation events to Kafka. Events are
// strictly post-commit and best-effort: the request path never waits on
// or fails because of the broker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"taskvault/internal/config"
	"taskvault/internal/models"
	"taskvault/pkg/logger"
)

// EnsureTopic creates the task-events topic with configured partitions
// (idempotent). Call at startup; if it fails (no broker, or the topic
// already exists), the app still runs.
func EnsureTopic(ctx context.Context) {
	cfg := config.Get()
	if len(cfg.KafkaBrokers) == 0 {
		return
	}
	conn, err := kafka.Dial("tcp", cfg.KafkaBrokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", cfg.KafkaTopic, "partitions", cfg.KafkaPartitions)
}

// Publisher writes task events. A zero/nil Publisher drops everything,
// so the service layer can hold one unconditionally.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds the async event writer from config. Returns a
// drop-everything publisher when no brokers are configured.
func NewPublisher(ctx context.Context) *Publisher {
	cfg := config.Get()
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info(ctx, "Kafka disabled (no brokers configured)")
		return &Publisher{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	return &Publisher{writer: w}
}

// Publish sends one task event, keyed by actor so one principal's
// events stay ordered within a partition. Failures are logged and
// swallowed; the mutation already committed.
func (p *Publisher) Publish(ctx context.Context, e *models.TaskEvent) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		logger.Debug(ctx, "Marshal task event failed", "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.ActorID),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Debug(ctx, "Kafka publish failed", "error", err, "action", e.Action)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Topic returns the task events topic name.
func Topic() string {
	return config.Get().KafkaTopic
}

// Brokers returns Kafka broker addresses.
func Brokers() []string {
	return config.Get().KafkaBrokers
}
