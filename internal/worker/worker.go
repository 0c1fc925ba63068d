// Package worker consumes task events from Kafka and records them in
// the task_events audit table. Runs beside the HTTP server; losing it
// loses audit rows, never task data.
package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"taskvault/internal/models"
	"taskvault/internal/queue"
	"taskvault/internal/repository"
	"taskvault/pkg/logger"
)

// Run starts the Kafka consumer loop. One consumer per process; scale
// by running more replicas (the consumer group shares partitions).
func Run(ctx context.Context, events *repository.EventRepo) {
	brokers := queue.Brokers()
	if len(brokers) == 0 {
		logger.Info(ctx, "Audit worker disabled (no Kafka brokers)")
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    queue.Topic(),
		GroupID:  "task-audit",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var processed int64
	logger.Info(ctx, "Audit consumer started", "topic", queue.Topic())
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Audit fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, events, msg.Value); err != nil {
			logger.Error(ctx, "Audit handle failed", "error", err, "payload", string(msg.Value))
			// Commit anyway to avoid a poison pill blocking the partition
			_ = reader.CommitMessages(ctx, msg)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Audit commit failed", "error", err)
		}
		atomic.AddInt64(&processed, 1)
	}
}

func handleMessage(ctx context.Context, events *repository.EventRepo, payload []byte) error {
	var e models.TaskEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return err
	}
	return events.Insert(ctx, &e)
}
