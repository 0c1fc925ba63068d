package models

import "time"

// Task status values. Stored as plain strings; request validation
// guarantees only these three reach this layer.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Task is a single task record. Owner is the id of the user that
// created it; admins may act on any task but never become the owner.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusCount is one row of the admin summary aggregation.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// TaskEvent is the message payload published to Kafka after a
// successful mutation (create/update/delete). Consumed by the audit
// worker; never part of the request path.
type TaskEvent struct {
	Action  string    `json:"action"` // created, updated, deleted
	TaskID  string    `json:"task_id"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}
