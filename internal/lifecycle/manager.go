// Package lifecycle creates, continues, approves and deletes task reports.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"worklog/internal/chain"
	"worklog/internal/models"
	"worklog/internal/policy"
	"worklog/internal/telemetry"
)

// Manager applies task lifecycle operations on behalf of an actor.
type Manager struct {
	store   Store
	notify  Notifications
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNotifications routes lifecycle events to n.
func WithNotifications(n Notifications) Option {
	return func(m *Manager) {
		if n != nil {
			m.notify = n
		}
	}
}

// WithMetrics records lifecycle counters on metrics.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock overrides the submission time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager over store.
func NewManager(store Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		notify: noopNotifications{},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateInput carries a task submission.
type CreateInput struct {
	AuthorName    string
	Project       string
	Date          *time.Time
	Deadline      *string
	Description   string
	Outcome       string
	PendingReason string
	TimeSpent     string
	// ParentID names the unfinished task this one continues.
	ParentID *int64
}

// CreateTask stores a new task owned by actor. When in.ParentID is set the
// parent is marked resolved in the same transaction as the insert.
func (m *Manager) CreateTask(ctx context.Context, actor models.Actor, in CreateInput) (models.Task, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return models.Task{}, validationError("owner id is required")
	}
	if !policy.Allowed(actor, policy.CreateTask, actor.ID) {
		return models.Task{}, ErrUnauthorized
	}

	task, err := m.newTask(actor, in)
	if err != nil {
		return models.Task{}, err
	}

	if in.ParentID == nil {
		id, err := m.store.InsertTask(ctx, task)
		if err != nil {
			return models.Task{}, persistenceError("insert task", err)
		}
		task.ID = id
	} else {
		err := m.store.WithTx(ctx, func(repo Repository) error {
			id, err := continueTask(ctx, repo, actor, &task, *in.ParentID)
			task.ID = id
			return err
		})
		if err != nil {
			return models.Task{}, persistenceError("continue task", err)
		}
	}

	m.logger.Info("task created",
		slog.Int64("id", task.ID),
		slog.String("owner", task.OwnerID),
		slog.Bool("continuation", task.ParentID != nil))
	m.metrics.TaskCreated(ctx, task.ParentID != nil)
	m.notify.ReviewQueue(task)

	return task, nil
}

func (m *Manager) newTask(actor models.Actor, in CreateInput) (models.Task, error) {
	project := strings.TrimSpace(in.Project)
	if project == "" {
		return models.Task{}, validationError("project is required")
	}

	spent := strings.TrimSpace(in.TimeSpent)
	if spent != "" {
		hours, err := strconv.ParseFloat(spent, 64)
		if err != nil || hours < 0 {
			return models.Task{}, validationError("time spent must be a non-negative number of hours")
		}
	}

	author := strings.TrimSpace(in.AuthorName)
	if author == "" {
		author = actor.Name
	}

	now := m.now().UTC()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = *in.Date
	}

	var deadline *string
	if in.Deadline != nil {
		if d := strings.TrimSpace(*in.Deadline); d != "" {
			deadline = &d
		}
	}

	return models.Task{
		OwnerID:       actor.ID,
		AuthorName:    author,
		Project:       project,
		Date:          date,
		Deadline:      deadline,
		Description:   strings.TrimSpace(in.Description),
		Outcome:       strings.TrimSpace(in.Outcome),
		PendingReason: strings.TrimSpace(in.PendingReason),
		TimeSpent:     spent,
		ApprovalState: models.StatePending,
		ParentID:      in.ParentID,
		CreatedAt:     now,
	}, nil
}

// continueTask inserts task as a child of parentID and resolves the parent.
// A parent actor may not view is reported as missing.
func continueTask(ctx context.Context, repo Repository, actor models.Actor, task *models.Task, parentID int64) (int64, error) {
	parent, err := repo.GetTask(ctx, parentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("parent task %d: %w", parentID, ErrNotFound)
		}
		return 0, err
	}
	if !policy.CanView(actor, parent.OwnerID) {
		return 0, fmt.Errorf("parent task %d: %w", parentID, ErrNotFound)
	}

	if task.Description == "" {
		task.Description = fmt.Sprintf("Continued: %s - %s", parent.AuthorName, parent.PendingReason)
	}

	id, err := repo.InsertTask(ctx, *task)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}

	resolved := models.StateResolved
	if err := repo.UpdateTask(ctx, parentID, models.TaskUpdate{
		ApprovalState: &resolved,
		OutcomeSuffix: models.ContinuedMarker,
	}); err != nil {
		return 0, fmt.Errorf("resolve parent %d: %w", parentID, err)
	}
	return id, nil
}

// ApproveTask records signature as the task's approval state. An empty
// signature is derived from the actor. Re-approval overwrites the signature.
func (m *Manager) ApproveTask(ctx context.Context, actor models.Actor, id int64, signature string) (models.Task, error) {
	if !policy.Allowed(actor, policy.ApproveTask, "") {
		return models.Task{}, ErrUnauthorized
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		signature = strings.TrimSpace(policy.Signature(actor))
	}
	if signature == "" {
		return models.Task{}, validationError("approver signature is required")
	}

	if err := m.store.UpdateTask(ctx, id, models.TaskUpdate{ApprovalState: &signature}); err != nil {
		return models.Task{}, persistenceError("approve task", err)
	}

	m.logger.Info("task approved", slog.Int64("id", id), slog.String("signature", signature))
	m.metrics.TaskApproved(ctx)

	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		m.logger.Warn("approved task could not be reloaded", slog.Int64("id", id), slog.String("error", err.Error()))
		task = models.Task{ID: id, ApprovalState: signature}
	}
	m.notify.ApprovalRecorded(task, signature)
	return task, nil
}

// DeleteTask removes a task owned by actor. Children of the task are left
// pointing at the removed id.
func (m *Manager) DeleteTask(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.Allowed(actor, policy.DeleteTask, actor.ID) {
		return ErrNotFoundOrUnauthorized
	}

	affected, err := m.store.DeleteTask(ctx, id, actor.ID)
	if err != nil {
		return persistenceError("delete task", err)
	}
	if affected == 0 {
		return ErrNotFoundOrUnauthorized
	}

	m.logger.Info("task deleted", slog.Int64("id", id), slog.String("owner", actor.ID))
	m.metrics.TaskDeleted(ctx)
	return nil
}

// ListTasks returns the tasks actor may see, newest first.
func (m *Manager) ListTasks(ctx context.Context, actor models.Actor) ([]models.Task, error) {
	var (
		tasks []models.Task
		err   error
	)
	switch {
	case policy.SeesAllTasks(actor):
		tasks, err = m.store.ListAllTasks(ctx)
	case policy.Allowed(actor, policy.ListOwnTasks, actor.ID):
		tasks, err = m.store.ListTasksByOwner(ctx, actor.ID)
	default:
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, persistenceError("list tasks", err)
	}
	return tasks, nil
}

// ListChains returns actor's top-level tasks, each with its resolved history.
func (m *Manager) ListChains(ctx context.Context, actor models.Actor) ([]chain.Chain, error) {
	tasks, err := m.ListTasks(ctx, actor)
	if err != nil {
		return nil, err
	}
	return chain.ResolveTopLevel(tasks), nil
}

// GetChain resolves the history of a single task. Tasks actor may not view
// are reported as not found.
func (m *Manager) GetChain(ctx context.Context, actor models.Actor, id int64) (chain.Chain, error) {
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		return chain.Chain{}, persistenceError("get task", err)
	}
	if !policy.CanView(actor, task.OwnerID) {
		return chain.Chain{}, ErrNotFound
	}

	tasks, err := m.ListTasks(ctx, actor)
	if err != nil {
		return chain.Chain{}, err
	}
	return chain.Resolve(task, chain.Index(tasks)), nil
}

// Stats summarizes the tasks actor may see.
func (m *Manager) Stats(ctx context.Context, actor models.Actor) (chain.Stats, error) {
	tasks, err := m.ListTasks(ctx, actor)
	if err != nil {
		return chain.Stats{}, err
	}
	return chain.Summarize(tasks), nil
}
