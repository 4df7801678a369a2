package lifecycle

import (
	"context"

	"worklog/internal/models"
)

// Repository is the task table as seen by the lifecycle manager.
// Lookups and updates of a missing id return ErrNotFound.
type Repository interface {
	InsertTask(ctx context.Context, t models.Task) (int64, error)
	UpdateTask(ctx context.Context, id int64, upd models.TaskUpdate) error
	// DeleteTask removes the task only when ownerID matches and reports the affected row count.
	DeleteTask(ctx context.Context, id int64, ownerID string) (int64, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	// ListTasksByOwner and ListAllTasks order by creation time, newest first.
	ListTasksByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	ListAllTasks(ctx context.Context) ([]models.Task, error)
}

// Store is a Repository able to run a unit of work atomically.
type Store interface {
	Repository
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Notifications receives fire-and-forget events. Implementations must not block.
type Notifications interface {
	ReviewQueue(task models.Task)
	ApprovalRecorded(task models.Task, approver string)
}

type noopNotifications struct{}

func (noopNotifications) ReviewQueue(models.Task)              {}
func (noopNotifications) ApprovalRecorded(models.Task, string) {}
