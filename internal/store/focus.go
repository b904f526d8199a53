package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ashureev/studyplan/internal/domain"
)

func (s *SQLiteStore) selectFocus() sq.SelectBuilder {
	return s.psq.Select(
		"f.id", "f.user_id", "f.subject_id", "COALESCE(sub.name, '')", "f.task_id",
		"f.start_time", "f.end_time", "f.duration_minutes", "f.status",
	).From("focus_sessions f").LeftJoin("subjects sub ON sub.id = f.subject_id")
}

func scanFocus(row rowScanner) (*domain.FocusSession, error) {
	var (
		f                 domain.FocusSession
		subjectID, taskID sql.NullInt64
		start             int64
		end               sql.NullInt64
		status            string
	)
	if err := row.Scan(&f.ID, &f.UserID, &subjectID, &f.SubjectName, &taskID,
		&start, &end, &f.DurationMinutes, &status); err != nil {
		return nil, err
	}
	f.SubjectID = int64Ptr(subjectID)
	f.TaskID = int64Ptr(taskID)
	f.StartTime = time.Unix(start, 0)
	if end.Valid {
		e := time.Unix(end.Int64, 0)
		f.EndTime = &e
	}
	f.Status = domain.FocusStatus(status)
	return &f, nil
}

// StartFocusSession inserts a running session and sets its id.
func (s *SQLiteStore) StartFocusSession(ctx context.Context, f *domain.FocusSession) error {
	if f.StartTime.IsZero() {
		f.StartTime = time.Now()
	}
	f.Status = domain.FocusRunning

	res, err := s.exec(ctx, "start focus session",
		`INSERT INTO focus_sessions (user_id, subject_id, task_id, start_time, status) VALUES (?, ?, ?, ?, ?)`,
		f.UserID, nullInt64(f.SubjectID), nullInt64(f.TaskID), f.StartTime.Unix(), string(f.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get focus session id: %w", err)
	}
	f.ID = id
	return nil
}

// FinishFocusSession closes a session as completed or cancelled.
func (s *SQLiteStore) FinishFocusSession(ctx context.Context, ownerID, id int64, status domain.FocusStatus, minutes int, end time.Time) error {
	return s.execOwned(ctx, "finish focus session",
		`UPDATE focus_sessions SET status = ?, end_time = ?, duration_minutes = ? WHERE id = ? AND user_id = ?`,
		string(status), end.Unix(), minutes, id, ownerID)
}

// GetFocusSession retrieves one of the owner's focus sessions.
func (s *SQLiteStore) GetFocusSession(ctx context.Context, ownerID, id int64) (*domain.FocusSession, error) {
	query, args, err := s.selectFocus().Where(sq.Eq{"f.id": id, "f.user_id": ownerID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building focus query: %w", err)
	}
	f, err := scanFocus(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // not found is signalled by nil session
	}
	if err != nil {
		return nil, fmt.Errorf("scan focus row: %w", err)
	}
	return f, nil
}

// ListFocusSessions returns the owner's most recent focus sessions.
func (s *SQLiteStore) ListFocusSessions(ctx context.Context, ownerID int64, limit int) ([]*domain.FocusSession, error) {
	qb := s.selectFocus().Where(sq.Eq{"f.user_id": ownerID}).OrderBy("f.start_time DESC", "f.id DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building focus history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query focus sessions: %w", err)
	}
	defer closeRows(rows, "list focus sessions")

	sessions := []*domain.FocusSession{}
	for rows.Next() {
		f, err := scanFocus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan focus row: %w", err)
		}
		sessions = append(sessions, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate focus sessions: %w", err)
	}
	return sessions, nil
}
