package repository

import (
	"context"
	"database/sql"

	"taskvault/internal/models"
	"taskvault/pkg/logger"
)

// EventRepo stores the audit trail written by the event worker.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Insert appends one task event to the audit table.
func (r *EventRepo) Insert(ctx context.Context, e *models.TaskEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_events (action, task_id, actor_id, at) VALUES ($1, $2, $3, $4)`,
		e.Action, e.TaskID, e.ActorID, e.At)
	if err != nil {
		logger.Error(ctx, "Repository Insert event failed", "error", err)
	}
	return err
}
