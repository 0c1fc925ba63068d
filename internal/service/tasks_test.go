package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"taskvault/internal/apierr"
	"taskvault/internal/cache"
	"taskvault/internal/models"
)

type fakeTasks struct {
	tasks      []models.Task
	reads      int
	forcedFail error
}

func (f *fakeTasks) ByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	f.reads++
	if f.forcedFail != nil {
		return nil, f.forcedFail
	}
	var out []models.Task
	for _, t := range f.tasks {
		if t.Owner == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) All(ctx context.Context) ([]models.Task, error) {
	f.reads++
	if f.forcedFail != nil {
		return nil, f.forcedFail
	}
	return append([]models.Task(nil), f.tasks...), nil
}

func (f *fakeTasks) ByID(ctx context.Context, id string) (*models.Task, error) {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTasks) Create(ctx context.Context, t *models.Task) error {
	f.tasks = append(f.tasks, *t)
	return nil
}

func (f *fakeTasks) Save(ctx context.Context, t *models.Task) error {
	for i := range f.tasks {
		if f.tasks[i].ID == t.ID {
			f.tasks[i] = *t
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeTasks) Delete(ctx context.Context, id string) error {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeTasks) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	byStatus := map[string]int64{}
	for _, t := range f.tasks {
		byStatus[t.Status]++
	}
	var out []models.StatusCount
	for status, n := range byStatus {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

type recordedEvents struct {
	actions []string
}

func (r *recordedEvents) Publish(ctx context.Context, e *models.TaskEvent) {
	r.actions = append(r.actions, e.Action+":"+e.TaskID)
}

// memStore is a healthy in-memory cache backing store.
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, ok := s.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (s *memStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.data[key] = val
	return nil
}

func (s *memStore) Del(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

// downStore refuses every operation, as an unreachable Redis would.
type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, errDown }
func (downStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return errDown
}
func (downStore) Del(ctx context.Context, key string) error { return errDown }
func (downStore) Ping(ctx context.Context) error            { return errDown }

func healthyIndex() *cache.Index {
	return cache.NewIndex(context.Background(), newMemStore(), time.Minute, 100*time.Millisecond)
}

func degradedIndex() *cache.Index {
	return cache.NewIndex(context.Background(), downStore{}, time.Minute, 100*time.Millisecond)
}

func decodeList(t *testing.T, b []byte) []models.Task {
	t.Helper()
	var payload ListPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		t.Fatalf("list payload is not valid JSON: %v", err)
	}
	return payload.Tasks
}

var (
	ann   = models.Principal{ID: "ann", Role: models.RoleUser}
	bob   = models.Principal{ID: "bob", Role: models.RoleUser}
	admin = models.Principal{ID: "carol", Role: models.RoleAdmin}
)

func seedTask(id, owner, status string) models.Task {
	now := time.Now().UTC()
	return models.Task{
		ID: id, Title: "Task " + id, Status: status, Owner: owner,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestListFiltersByRole(t *testing.T) {
	store := &fakeTasks{tasks: []models.Task{
		seedTask("t1", "ann", models.StatusTodo),
		seedTask("t2", "bob", models.StatusTodo),
	}}
	svc := NewTaskService(store, healthyIndex(), nil)
	ctx := context.Background()

	got := decodeList(t, mustList(t, svc, ctx, ann))
	if len(got) != 1 || got[0].Owner != "ann" {
		t.Errorf("ann's list = %+v, want only her task", got)
	}
	got = decodeList(t, mustList(t, svc, ctx, bob))
	if len(got) != 1 || got[0].Owner != "bob" {
		t.Errorf("bob's list = %+v, want only his task", got)
	}
	got = decodeList(t, mustList(t, svc, ctx, admin))
	if len(got) != 2 {
		t.Errorf("admin list has %d tasks, want all 2", len(got))
	}
}

func mustList(t *testing.T, svc *TaskService, ctx context.Context, p models.Principal) []byte {
	t.Helper()
	b, err := svc.List(ctx, p)
	if err != nil {
		t.Fatalf("List(%s) failed: %v", p.ID, err)
	}
	return b
}

func TestListIsCachedAndIdempotent(t *testing.T) {
	store := &fakeTasks{tasks: []models.Task{seedTask("t1", "ann", models.StatusTodo)}}
	svc := NewTaskService(store, healthyIndex(), nil)
	ctx := context.Background()

	first := mustList(t, svc, ctx, ann)
	second := mustList(t, svc, ctx, ann)
	if string(first) != string(second) {
		t.Error("consecutive lists with no mutation returned different payloads")
	}
	if store.reads != 1 {
		t.Errorf("storage reads = %d, want 1 (second list served from cache)", store.reads)
	}
}

func TestMutationInvalidatesOwnListCache(t *testing.T) {
	store := &fakeTasks{}
	events := &recordedEvents{}
	svc := NewTaskService(store, healthyIndex(), events)
	ctx := context.Background()

	if got := decodeList(t, mustList(t, svc, ctx, ann)); len(got) != 0 {
		t.Fatalf("expected empty initial list, got %+v", got)
	}

	created, err := svc.Create(ctx, ann, CreateTaskInput{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Owner != ann.ID {
		t.Errorf("owner = %q, want %q", created.Owner, ann.ID)
	}
	if created.Status != models.StatusTodo {
		t.Errorf("default status = %q, want todo", created.Status)
	}

	// The pre-mutation payload must never be served after the mutation.
	got := decodeList(t, mustList(t, svc, ctx, ann))
	if len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("list after create = %+v, want the new task", got)
	}

	title := "Buy oat milk"
	if _, err := svc.Update(ctx, ann, created.ID, UpdateTaskInput{Title: &title}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got = decodeList(t, mustList(t, svc, ctx, ann))
	if got[0].Title != title {
		t.Errorf("list after update still shows %q", got[0].Title)
	}

	if err := svc.Delete(ctx, ann, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := decodeList(t, mustList(t, svc, ctx, ann)); len(got) != 0 {
		t.Errorf("list after delete = %+v, want empty", got)
	}

	want := []string{"created:" + created.ID, "updated:" + created.ID, "deleted:" + created.ID}
	if len(events.actions) != len(want) {
		t.Fatalf("events = %v, want %v", events.actions, want)
	}
	for i := range want {
		if events.actions[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, events.actions[i], want[i])
		}
	}
}

func TestUpdateAuthorization(t *testing.T) {
	store := &fakeTasks{tasks: []models.Task{seedTask("t1", "ann", models.StatusTodo)}}
	svc := NewTaskService(store, healthyIndex(), nil)
	ctx := context.Background()
	title := "hijacked"

	if _, err := svc.Update(ctx, bob, "t1", UpdateTaskInput{Title: &title}); !apierr.IsKind(err, apierr.KindForbidden) {
		t.Errorf("non-owner update: got %v, want Forbidden", err)
	}
	if err := svc.Delete(ctx, bob, "t1"); !apierr.IsKind(err, apierr.KindForbidden) {
		t.Errorf("non-owner delete: got %v, want Forbidden", err)
	}
	if _, err := svc.Update(ctx, bob, "missing", UpdateTaskInput{}); !apierr.IsKind(err, apierr.KindNotFound) {
		t.Errorf("absent id: got %v, want NotFound (not Forbidden)", err)
	}
	if _, err := svc.Update(ctx, ann, "t1", UpdateTaskInput{Title: &title}); err != nil {
		t.Errorf("owner update failed: %v", err)
	}
	if _, err := svc.Update(ctx, admin, "t1", UpdateTaskInput{}); err != nil {
		t.Errorf("admin update failed: %v", err)
	}
	if err := svc.Delete(ctx, admin, "t1"); err != nil {
		t.Errorf("admin delete failed: %v", err)
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	orig := seedTask("t1", "ann", models.StatusTodo)
	orig.Description = "unchanged"
	store := &fakeTasks{tasks: []models.Task{orig}}
	svc := NewTaskService(store, healthyIndex(), nil)
	ctx := context.Background()

	status := models.StatusDone
	updated, err := svc.Update(ctx, ann, "t1", UpdateTaskInput{Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != models.StatusDone {
		t.Errorf("status = %q, want done", updated.Status)
	}
	if updated.Title != orig.Title || updated.Description != "unchanged" {
		t.Errorf("absent fields were reset: %+v", updated)
	}
}

func TestEmptyUpdateIsNoOpWriteThatStillInvalidates(t *testing.T) {
	orig := seedTask("t1", "ann", models.StatusTodo)
	store := &fakeTasks{tasks: []models.Task{orig}}
	svc := NewTaskService(store, healthyIndex(), nil)
	ctx := context.Background()

	mustList(t, svc, ctx, ann) // populate cache
	readsBefore := store.reads

	time.Sleep(5 * time.Millisecond)
	updated, err := svc.Update(ctx, ann, "t1", UpdateTaskInput{})
	if err != nil {
		t.Fatalf("empty update failed: %v", err)
	}
	if !updated.UpdatedAt.After(orig.UpdatedAt) {
		t.Error("empty update must still refresh updatedAt")
	}
	if updated.Title != orig.Title || updated.Status != orig.Status {
		t.Errorf("empty update changed fields: %+v", updated)
	}

	mustList(t, svc, ctx, ann)
	if store.reads != readsBefore+1 {
		t.Error("empty update must invalidate the cache, forcing a fresh storage read")
	}
}

func TestDegradedCacheTransparency(t *testing.T) {
	run := func(idx *cache.Index) []models.Task {
		store := &fakeTasks{tasks: []models.Task{
			seedTask("t1", "ann", models.StatusTodo),
			seedTask("t2", "bob", models.StatusTodo),
		}}
		svc := NewTaskService(store, idx, nil)
		ctx := context.Background()

		created, err := svc.Create(ctx, ann, CreateTaskInput{Title: "New task"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		status := models.StatusDone
		if _, err := svc.Update(ctx, ann, created.ID, UpdateTaskInput{Status: &status}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := svc.Delete(ctx, ann, "t1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		return decodeList(t, mustList(t, svc, ctx, ann))
	}

	healthy := run(healthyIndex())
	degraded := run(degradedIndex())

	if len(healthy) != len(degraded) {
		t.Fatalf("healthy=%d tasks, degraded=%d tasks", len(healthy), len(degraded))
	}
	for i := range healthy {
		if healthy[i].Title != degraded[i].Title || healthy[i].Status != degraded[i].Status {
			t.Errorf("task %d differs: healthy=%+v degraded=%+v", i, healthy[i], degraded[i])
		}
	}
}

func TestSummary(t *testing.T) {
	store := &fakeTasks{tasks: []models.Task{
		seedTask("t1", "ann", models.StatusTodo),
		seedTask("t2", "ann", models.StatusDone),
		seedTask("t3", "bob", models.StatusDone),
	}}
	svc := NewTaskService(store, healthyIndex(), nil)
	ctx := context.Background()

	if _, err := svc.Summary(ctx, ann); !apierr.IsKind(err, apierr.KindForbidden) {
		t.Errorf("non-admin summary: got %v, want Forbidden", err)
	}

	counts, err := svc.Summary(ctx, admin)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	want := map[string]int64{models.StatusTodo: 1, models.StatusDone: 2}
	if len(counts) != len(want) {
		t.Fatalf("counts = %+v", counts)
	}
	for _, c := range counts {
		if want[c.Status] != c.Count {
			t.Errorf("count[%s] = %d, want %d", c.Status, c.Count, want[c.Status])
		}
	}
}

func TestStorageFailureSurfacesAsInternal(t *testing.T) {
	store := &fakeTasks{forcedFail: errors.New("pq: down")}
	svc := NewTaskService(store, healthyIndex(), nil)

	_, err := svc.List(context.Background(), ann)
	if !apierr.IsKind(err, apierr.KindInternal) {
		t.Errorf("storage failure: got %v, want Internal", err)
	}
}
