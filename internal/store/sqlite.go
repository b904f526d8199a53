package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	psq   sq.StatementBuilderType
	retry shared.RetryPolicy
}

var _ Repository = (*SQLiteStore)(nil)

var (
	globalMu    sync.Mutex
	globalStore *SQLiteStore
)

// Init opens the process-wide store at dbPath. It must be called exactly once
// before Handle; a second call returns an error.
func Init(dbPath string) (*SQLiteStore, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalStore != nil {
		return nil, errors.New("store already initialized")
	}
	s, err := NewSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	globalStore = s
	return s, nil
}

// Handle returns the store created by Init. It panics if Init has not succeeded,
// so a missing initialization fails loudly at the first use.
func Handle() *SQLiteStore {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalStore == nil {
		panic("store: Handle called before Init")
	}
	return globalStore
}

// NewSQLite opens the database at dbPath, applies migrations and returns the store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return newWithDB(db), nil
}

// newWithDB wraps an already-open database without running migrations.
func newWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:    db,
		psq:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
		retry: shared.DefaultRetryPolicy,
	}
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// exec runs a write statement, retrying while SQLite reports contention.
func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := shared.WithRetry(ctx, op, s.retry, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// execOwned runs a write that must touch at least one row; otherwise the
// target is missing or owned by someone else.
func (s *SQLiteStore) execOwned(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("Failed to close rows", "query", what, "error", err)
	}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
