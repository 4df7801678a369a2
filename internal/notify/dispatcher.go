// Package notify delivers task submission and approval notices out of band.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"worklog/internal/models"
	"worklog/internal/telemetry"
)

// Notifier delivers a single notice synchronously.
type Notifier interface {
	NotifyReviewQueue(ctx context.Context, task models.Task) error
	NotifyApprovalRecorded(ctx context.Context, task models.Task, approver string) error
}

const (
	kindReviewQueue = "review_queue"
	kindApproval    = "approval_recorded"
)

// Dispatcher runs a Notifier in detached goroutines. Delivery errors and
// panics are logged and counted, never returned.
type Dispatcher struct {
	next    Notifier
	logger  *slog.Logger
	metrics *telemetry.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps next. A non-positive timeout defaults to 30 seconds.
func NewDispatcher(next Notifier, logger *slog.Logger, metrics *telemetry.Metrics, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{next: next, logger: logger, metrics: metrics, timeout: timeout}
}

// ReviewQueue announces a new submission.
func (d *Dispatcher) ReviewQueue(task models.Task) {
	d.dispatch(kindReviewQueue, task.ID, func(ctx context.Context) error {
		return d.next.NotifyReviewQueue(ctx, task)
	})
}

// ApprovalRecorded announces a sign-off.
func (d *Dispatcher) ApprovalRecorded(task models.Task, approver string) {
	d.dispatch(kindApproval, task.ID, func(ctx context.Context) error {
		return d.next.NotifyApprovalRecorded(ctx, task, approver)
	})
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(kind string, taskID int64, send func(context.Context) error) {
	id := uuid.NewString()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := safeSend(ctx, send); err != nil {
			d.metrics.NotificationFailed(ctx, kind)
			d.logger.Error("notification failed",
				slog.String("kind", kind),
				slog.String("notification_id", id),
				slog.Int64("task_id", taskID),
				slog.String("error", err.Error()))
			return
		}
		d.logger.Debug("notification sent",
			slog.String("kind", kind),
			slog.String("notification_id", id),
			slog.Int64("task_id", taskID))
	}()
}

func safeSend(ctx context.Context, send func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return send(ctx)
}

// LogNotifier writes notices to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyReviewQueue logs a new submission.
func (n LogNotifier) NotifyReviewQueue(_ context.Context, task models.Task) error {
	n.logger().Info("task awaiting review",
		slog.Int64("task_id", task.ID),
		slog.String("employee", task.AuthorName),
		slog.String("project", task.Project))
	return nil
}

// NotifyApprovalRecorded logs a sign-off.
func (n LogNotifier) NotifyApprovalRecorded(_ context.Context, task models.Task, approver string) error {
	n.logger().Info("task approval recorded",
		slog.Int64("task_id", task.ID),
		slog.String("employee", task.AuthorName),
		slog.String("approver", approver))
	return nil
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}
