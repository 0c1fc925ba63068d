// Package repository implements the storage collaborator contract:
// id-keyed CRUD on users and tasks plus the count-by-status aggregation.
// Single-row operations are atomic; there are no cross-row transactions.
package repository

import (
	"context"
	"database/sql"

	"taskvault/internal/models"
	"taskvault/pkg/logger"
)

// TaskRepo provides task CRUD over Postgres.
type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

const taskColumns = `id, title, description, status, owner, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }, t *models.Task) error {
	return row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Owner, &t.CreatedAt, &t.UpdatedAt)
}

// ByOwner returns the tasks owned by ownerID, newest first.
func (r *TaskRepo) ByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		logger.Error(ctx, "Repository ByOwner failed", "error", err)
		return nil, err
	}
	return collectTasks(ctx, rows)
}

// All returns every task, newest first.
func (r *TaskRepo) All(ctx context.Context) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		logger.Error(ctx, "Repository All failed", "error", err)
		return nil, err
	}
	return collectTasks(ctx, rows)
}

func collectTasks(ctx context.Context, rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()
	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := scanTask(rows, &t); err != nil {
			logger.Error(ctx, "Repository scan task failed", "error", err)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ByID returns the task with the given id, or sql.ErrNoRows.
func (r *TaskRepo) ByID(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if err := scanTask(row, &t); err != nil {
		if err != sql.ErrNoRows {
			logger.Error(ctx, "Repository ByID failed", "error", err, "id", id)
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a new task.
func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, status, owner, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Title, t.Description, t.Status, t.Owner, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		logger.Error(ctx, "Repository Create task failed", "error", err)
	}
	return err
}

// Save persists the mutable fields of an existing task.
func (r *TaskRepo) Save(ctx context.Context, t *models.Task) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = $1, description = $2, status = $3, updated_at = $4 WHERE id = $5`,
		t.Title, t.Description, t.Status, t.UpdatedAt, t.ID)
	if err != nil {
		logger.Error(ctx, "Repository Save task failed", "error", err, "id", t.ID)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a task by id.
func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error(ctx, "Repository Delete task failed", "error", err, "id", id)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus returns the number of tasks per status across all owners.
func (r *TaskRepo) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status ORDER BY status`)
	if err != nil {
		logger.Error(ctx, "Repository CountByStatus failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	counts := []models.StatusCount{}
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
