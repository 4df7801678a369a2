package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"worklog/internal/lifecycle"
	"worklog/internal/models"
)

// queries runs statements against either the pool or an open transaction.
// Statements are written with ? placeholders and rebound per driver.
type queries struct {
	ext sqlx.ExtContext
}

const taskColumns = `id, owner_id, author_name, project, date, deadline, description, outcome,
        pending_reason, time_spent, approval_state, parent_id, created_at`

// InsertTask stores t and returns its new id.
func (q queries) InsertTask(ctx context.Context, t models.Task) (int64, error) {
	const stmt = `INSERT INTO tasks(owner_id, author_name, project, date, deadline, description, outcome,
            pending_reason, time_spent, approval_state, parent_id, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	state := t.ApprovalState
	if state == "" {
		state = models.StatePending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Date.IsZero() {
		t.Date = t.CreatedAt
	}

	var id int64
	err := q.ext.QueryRowxContext(ctx, q.ext.Rebind(stmt),
		t.OwnerID, t.AuthorName, t.Project, t.Date, t.Deadline, t.Description, t.Outcome,
		t.PendingReason, t.TimeSpent, state, t.ParentID, t.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// GetTask retrieves a task by id.
func (q queries) GetTask(ctx context.Context, id int64) (models.Task, error) {
	var t models.Task
	err := sqlx.GetContext(ctx, q.ext, &t, q.ext.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, lifecycle.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask applies the partial changes in upd to a task.
func (q queries) UpdateTask(ctx context.Context, id int64, upd models.TaskUpdate) error {
	if upd.Empty() {
		_, err := q.GetTask(ctx, id)
		return err
	}

	var (
		sets []string
		args []any
	)
	if upd.ApprovalState != nil {
		sets = append(sets, "approval_state = ?")
		args = append(args, *upd.ApprovalState)
	}
	if upd.OutcomeSuffix != "" {
		sets = append(sets, "outcome = COALESCE(outcome, '') || ?")
		args = append(args, upd.OutcomeSuffix)
	}
	args = append(args, id)

	stmt := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(stmt), args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}

// DeleteTask removes a task when it belongs to ownerID.
func (q queries) DeleteTask(ctx context.Context, id int64, ownerID string) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(`DELETE FROM tasks WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete task: %w", err)
	}
	return affected, nil
}

// ListTasksByOwner returns one employee's tasks, newest first.
func (q queries) ListTasksByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	return q.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

// ListAllTasks returns every task, newest first.
func (q queries) ListAllTasks(ctx context.Context) ([]models.Task, error) {
	return q.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
}

func (q queries) listTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := sqlx.SelectContext(ctx, q.ext, &tasks, q.ext.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
