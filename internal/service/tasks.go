// Package service orchestrates the task access path: authorize against
// the policy, read through the cache-aside index, write through storage
// and invalidate synchronously before returning. The cache can only
// ever change latency here, never response content.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"taskvault/internal/apierr"
	"taskvault/internal/cache"
	"taskvault/internal/models"
	"taskvault/internal/policy"
)

// TaskStore is the storage collaborator contract for tasks.
// *repository.TaskRepo implements it; tests use an in-memory fake.
type TaskStore interface {
	ByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	All(ctx context.Context) ([]models.Task, error)
	ByID(ctx context.Context, id string) (*models.Task, error)
	Create(ctx context.Context, t *models.Task) error
	Save(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

// EventPublisher emits post-commit mutation events. Best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, e *models.TaskEvent)
}

// ListPayload is the list response body; its serialized form is what
// the cache stores.
type ListPayload struct {
	Tasks []models.Task `json:"tasks"`
}

// CreateTaskInput is a shape-validated create request.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
}

// UpdateTaskInput carries the provided subset of mutable fields; nil
// means "leave unchanged". All-nil is a valid no-op write.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
}

// TaskService is the task access service.
type TaskService struct {
	store     TaskStore
	cache     *cache.Index
	events    EventPublisher
	listGroup singleflight.Group
}

func NewTaskService(store TaskStore, idx *cache.Index, events EventPublisher) *TaskService {
	return &TaskService{store: store, cache: idx, events: events}
}

// List returns the serialized task list visible to p: all tasks for
// admins, own tasks otherwise. Cache-aside with concurrent misses for
// the same key collapsed into one storage read.
func (s *TaskService) List(ctx context.Context, p models.Principal) ([]byte, error) {
	key := cache.KeyFor(p)
	if b, ok := s.cache.Get(ctx, key); ok {
		return b, nil
	}
	v, err, _ := s.listGroup.Do(key, func() (interface{}, error) {
		var tasks []models.Task
		var err error
		if policy.IsAdmin(p) {
			tasks, err = s.store.All(ctx)
		} else {
			tasks, err = s.store.ByOwner(ctx, p.ID)
		}
		if err != nil {
			return nil, apierr.Internal(err)
		}
		if tasks == nil {
			tasks = []models.Task{}
		}
		b, err := json.Marshal(ListPayload{Tasks: tasks})
		if err != nil {
			return nil, apierr.Internal(err)
		}
		s.cache.Set(ctx, key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Create persists a new task owned by p and invalidates p's list key.
func (s *TaskService) Create(ctx context.Context, p models.Principal, in CreateTaskInput) (*models.Task, error) {
	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	now := time.Now().UTC()
	t := &models.Task{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Owner:       p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, apierr.Internal(err)
	}
	s.cache.Invalidate(ctx, cache.KeyFor(p))
	s.publish(ctx, "created", t.ID, p.ID)
	return t, nil
}

// Update applies the provided fields to the task. 404 when the id does
// not exist, 403 when it exists but p is neither owner nor admin. An
// empty update is accepted as a no-op write that still refreshes
// updatedAt and invalidates the cache.
func (s *TaskService) Update(ctx context.Context, p models.Principal, id string, in UpdateTaskInput) (*models.Task, error) {
	t, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(p, t.Owner, policy.ActionWrite) {
		return nil, apierr.Forbidden("Forbidden")
	}
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.NotFound("Task not found")
		}
		return nil, apierr.Internal(err)
	}
	s.cache.Invalidate(ctx, cache.KeyFor(p))
	s.publish(ctx, "updated", t.ID, p.ID)
	return t, nil
}

// Delete removes the task. Same 404/403 ordering as Update.
func (s *TaskService) Delete(ctx context.Context, p models.Principal, id string) error {
	t, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanAccess(p, t.Owner, policy.ActionDelete) {
		return apierr.Forbidden("Forbidden")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.NotFound("Task not found")
		}
		return apierr.Internal(err)
	}
	s.cache.Invalidate(ctx, cache.KeyFor(p))
	s.publish(ctx, "deleted", t.ID, p.ID)
	return nil
}

// Summary returns the live count of tasks per status across all owners.
// Admin only; never cached.
func (s *TaskService) Summary(ctx context.Context, p models.Principal) ([]models.StatusCount, error) {
	if !policy.IsAdmin(p) {
		return nil, apierr.Forbidden("Access denied - insufficient permissions")
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return counts, nil
}

func (s *TaskService) fetch(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.store.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.NotFound("Task not found")
		}
		return nil, apierr.Internal(err)
	}
	return t, nil
}

func (s *TaskService) publish(ctx context.Context, action, taskID, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, &models.TaskEvent{
		Action:  action,
		TaskID:  taskID,
		ActorID: actorID,
		At:      time.Now().UTC(),
	})
}
