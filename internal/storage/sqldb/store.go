// Package sqldb persists tasks and users in SQLite or Postgres.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"worklog/internal/lifecycle"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store wraps the database handle and serves both task and user queries.
type Store struct {
	queries
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects with driver and runs the schema migrations. For SQLite the
// dsn is a file path; for Postgres it is a connection string.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		conn *sqlx.DB
		err  error
	)
	switch driver {
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		conn, err = sqlx.Open(DriverSQLite, fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	case DriverPostgres:
		conn, err = sqlx.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	s := &Store{queries: queries{ext: conn}, db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Debug("database ready", slog.String("driver", driver))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := sqliteSchema
	if s.db.DriverName() == DriverPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            emp_id TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'EMPLOYEE',
            dept TEXT NOT NULL DEFAULT 'General',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id TEXT NOT NULL,
            author_name TEXT NOT NULL DEFAULT '',
            project TEXT NOT NULL,
            date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            deadline TEXT,
            description TEXT NOT NULL DEFAULT '',
            outcome TEXT NOT NULL DEFAULT '',
            pending_reason TEXT NOT NULL DEFAULT '',
            time_spent TEXT NOT NULL DEFAULT '',
            approval_state TEXT NOT NULL DEFAULT 'Pending',
            parent_id INTEGER,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            emp_id VARCHAR(50) NOT NULL UNIQUE,
            name VARCHAR(100) NOT NULL,
            email VARCHAR(100) NOT NULL UNIQUE,
            password_hash VARCHAR(255) NOT NULL,
            role VARCHAR(20) NOT NULL DEFAULT 'EMPLOYEE',
            dept VARCHAR(50) NOT NULL DEFAULT 'General',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
	`CREATE TABLE IF NOT EXISTS tasks (
            id BIGSERIAL PRIMARY KEY,
            owner_id VARCHAR(50) NOT NULL,
            author_name VARCHAR(100) NOT NULL DEFAULT '',
            project VARCHAR(100) NOT NULL,
            date TIMESTAMPTZ NOT NULL DEFAULT now(),
            deadline VARCHAR(50),
            description TEXT NOT NULL DEFAULT '',
            outcome TEXT NOT NULL DEFAULT '',
            pending_reason TEXT NOT NULL DEFAULT '',
            time_spent VARCHAR(50) NOT NULL DEFAULT '',
            approval_state VARCHAR(100) NOT NULL DEFAULT 'Pending',
            parent_id BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);`,
}

// WithTx runs fn against a transaction, committing only when fn succeeds.
// The rollback also runs when fn panics.
func (s *Store) WithTx(ctx context.Context, fn func(lifecycle.Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
	}()

	if err := fn(queries{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
