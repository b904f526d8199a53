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

func (s *SQLiteStore) selectTasks() sq.SelectBuilder {
	return s.psq.Select(
		"t.id", "t.user_id", "t.subject_id",
		"COALESCE(sub.name, '')", "COALESCE(sub.color, '')",
		"t.task_date", "t.start_time", "t.end_time", "t.content", "t.status",
		"t.alarm_enabled", "COALESCE(t.alarm_time, '')", "t.created_at", "t.updated_at",
	).From("tasks t").LeftJoin("subjects sub ON sub.id = t.subject_id")
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                    domain.Task
		subjectID            sql.NullInt64
		status               string
		alarm                int
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &subjectID, &t.SubjectName, &t.SubjectColor,
		&t.TaskDate, &t.StartTime, &t.EndTime, &t.Content, &status,
		&alarm, &t.AlarmTime, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	t.SubjectID = int64Ptr(subjectID)
	t.Status = domain.TaskStatus(status)
	t.AlarmEnabled = alarm != 0
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, qb sq.SelectBuilder, what string) ([]*domain.Task, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", what, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer closeRows(rows, what)

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return tasks, nil
}

// ListTasksByDate returns the owner's tasks for date ordered by start time.
func (s *SQLiteStore) ListTasksByDate(ctx context.Context, ownerID int64, date string) ([]*domain.Task, error) {
	qb := s.selectTasks().
		Where(sq.Eq{"t.user_id": ownerID, "t.task_date": date}).
		OrderBy("t.start_time ASC", "t.id ASC")
	return s.queryTasks(ctx, qb, "tasks by date")
}

// ListCompletedTasksSince returns completed tasks dated on or after since, newest first.
func (s *SQLiteStore) ListCompletedTasksSince(ctx context.Context, ownerID int64, since string, limit int) ([]*domain.Task, error) {
	qb := s.selectTasks().
		Where(sq.Eq{"t.user_id": ownerID, "t.status": string(domain.TaskCompleted)}).
		Where(sq.GtOrEq{"t.task_date": since}).
		OrderBy("t.task_date DESC", "t.start_time DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return s.queryTasks(ctx, qb, "completed tasks")
}

// GetTask retrieves one of the owner's tasks.
func (s *SQLiteStore) GetTask(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	query, args, err := s.selectTasks().Where(sq.Eq{"t.id": id, "t.user_id": ownerID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building task query: %w", err)
	}
	t, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // not found is signalled by nil task
	}
	if err != nil {
		return nil, fmt.Errorf("scan task row: %w", err)
	}
	return t, nil
}

// CreateTask inserts t and sets its id and timestamps.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *domain.Task) error {
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = domain.TaskPending
	}

	res, err := s.exec(ctx, "create task",
		`INSERT INTO tasks (user_id, subject_id, task_date, start_time, end_time, content, status, alarm_enabled, alarm_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullInt64(t.SubjectID), t.TaskDate, t.StartTime, t.EndTime, t.Content,
		string(t.Status), boolInt(t.AlarmEnabled), nullString(t.AlarmTime), now.Unix(), now.Unix())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get task id: %w", err)
	}
	t.ID = id
	return nil
}

// taskPatchColumns turns a patch into the sparse column set to write.
func taskPatchColumns(p domain.TaskPatch) map[string]any {
	cols := map[string]any{}
	if p.SubjectID != nil {
		cols["subject_id"] = *p.SubjectID
	}
	if p.TaskDate != nil {
		cols["task_date"] = *p.TaskDate
	}
	if p.StartTime != nil {
		cols["start_time"] = *p.StartTime
	}
	if p.EndTime != nil {
		cols["end_time"] = *p.EndTime
	}
	if p.Content != nil {
		cols["content"] = *p.Content
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.AlarmEnabled != nil {
		cols["alarm_enabled"] = boolInt(*p.AlarmEnabled)
	}
	if p.AlarmTime != nil {
		cols["alarm_time"] = nullString(*p.AlarmTime)
	}
	return cols
}

// UpdateTask writes only the columns present in patch.
func (s *SQLiteStore) UpdateTask(ctx context.Context, ownerID, id int64, patch domain.TaskPatch) error {
	cols := taskPatchColumns(patch)
	if len(cols) == 0 {
		t, err := s.GetTask(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.ErrNotFound
		}
		return nil
	}
	cols["updated_at"] = time.Now().Unix()

	query, args, err := s.psq.Update("tasks").
		SetMap(cols).
		Where(sq.Eq{"id": id, "user_id": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building task update: %w", err)
	}
	return s.execOwned(ctx, "update task", query, args...)
}

// SetTaskStatus changes a task's status.
func (s *SQLiteStore) SetTaskStatus(ctx context.Context, ownerID, id int64, status domain.TaskStatus) error {
	return s.execOwned(ctx, "set task status",
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(status), time.Now().Unix(), id, ownerID)
}

// DeleteTask removes one of the owner's tasks.
func (s *SQLiteStore) DeleteTask(ctx context.Context, ownerID, id int64) error {
	return s.execOwned(ctx, "delete task", `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, ownerID)
}
