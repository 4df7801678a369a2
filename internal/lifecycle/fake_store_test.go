package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"

	"worklog/internal/models"
)

var errInjected = errors.New("injected store failure")

// memTable is the unsynchronized task table shared by the fake store and its transactions.
type memTable struct {
	nextID int64
	tasks  map[int64]models.Task

	failInsert bool
	failUpdate bool
}

func (t *memTable) clone() *memTable {
	out := *t
	out.tasks = make(map[int64]models.Task, len(t.tasks))
	for id, task := range t.tasks {
		out.tasks[id] = task
	}
	return &out
}

func (t *memTable) InsertTask(_ context.Context, task models.Task) (int64, error) {
	if t.failInsert {
		return 0, errInjected
	}
	t.nextID++
	task.ID = t.nextID
	t.tasks[task.ID] = task
	return task.ID, nil
}

func (t *memTable) UpdateTask(_ context.Context, id int64, upd models.TaskUpdate) error {
	if t.failUpdate {
		return errInjected
	}
	task, ok := t.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if upd.ApprovalState != nil {
		task.ApprovalState = *upd.ApprovalState
	}
	task.Outcome += upd.OutcomeSuffix
	t.tasks[id] = task
	return nil
}

func (t *memTable) DeleteTask(_ context.Context, id int64, ownerID string) (int64, error) {
	task, ok := t.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return 0, nil
	}
	delete(t.tasks, id)
	return 1, nil
}

func (t *memTable) GetTask(_ context.Context, id int64) (models.Task, error) {
	task, ok := t.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return task, nil
}

func (t *memTable) ListTasksByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	all, _ := t.ListAllTasks(ctx)
	out := all[:0]
	for _, task := range all {
		if task.OwnerID == ownerID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (t *memTable) ListAllTasks(context.Context) ([]models.Task, error) {
	out := make([]models.Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type fakeStore struct {
	mu    sync.Mutex
	table *memTable
}

func newFakeStore() *fakeStore {
	return &fakeStore{table: &memTable{tasks: make(map[int64]models.Task)}}
}

func (s *fakeStore) InsertTask(ctx context.Context, t models.Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.InsertTask(ctx, t)
}

func (s *fakeStore) UpdateTask(ctx context.Context, id int64, upd models.TaskUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.UpdateTask(ctx, id, upd)
}

func (s *fakeStore) DeleteTask(ctx context.Context, id int64, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.DeleteTask(ctx, id, ownerID)
}

func (s *fakeStore) GetTask(ctx context.Context, id int64) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.GetTask(ctx, id)
}

func (s *fakeStore) ListTasksByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.ListTasksByOwner(ctx, ownerID)
}

func (s *fakeStore) ListAllTasks(ctx context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.ListAllTasks(ctx)
}

func (s *fakeStore) WithTx(_ context.Context, fn func(Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.table.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.table = work
	return nil
}

func (s *fakeStore) setFailures(insert, update bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.failInsert = insert
	s.table.failUpdate = update
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table.tasks)
}

type recordedApproval struct {
	task     models.Task
	approver string
}

type fakeNotifications struct {
	mu        sync.Mutex
	submitted []models.Task
	approved  []recordedApproval
}

func (n *fakeNotifications) ReviewQueue(task models.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, task)
}

func (n *fakeNotifications) ApprovalRecorded(task models.Task, approver string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, recordedApproval{task: task, approver: approver})
}
