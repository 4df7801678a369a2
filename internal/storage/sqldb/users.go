package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"worklog/internal/auth"
	"worklog/internal/models"
)

const userColumns = `id, emp_id, name, email, password_hash, role, dept, created_at`

// CreateUser inserts an account. Duplicate emp ids or e-mails yield auth.ErrUserExists.
func (q queries) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	const stmt = `INSERT INTO users(emp_id, name, email, password_hash, role, dept, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?) RETURNING id`

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := q.ext.QueryRowxContext(ctx, q.ext.Rebind(stmt),
		u.EmpID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Dept, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, auth.ErrUserExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks an account up by its login address.
func (q queries) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, q.ext, &u, q.ext.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CountUsers returns the number of registered accounts.
func (q queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, q.ext, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
