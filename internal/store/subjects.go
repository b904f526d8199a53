package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/shared"
)

const subjectColumns = `id, user_id, name, color, is_default, created_at`

func scanSubject(row rowScanner) (*domain.Subject, error) {
	var (
		sub       domain.Subject
		isDefault int
		createdAt int64
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Color, &isDefault, &createdAt); err != nil {
		return nil, err
	}
	sub.IsDefault = isDefault != 0
	sub.CreatedAt = time.Unix(createdAt, 0)
	return &sub, nil
}

// ListSubjects returns the owner's subjects, defaults first.
func (s *SQLiteStore) ListSubjects(ctx context.Context, ownerID int64) ([]*domain.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE user_id = ? ORDER BY is_default DESC, name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer closeRows(rows, "list subjects")

	subjects := []*domain.Subject{}
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// GetSubject retrieves one of the owner's subjects.
func (s *SQLiteStore) GetSubject(ctx context.Context, ownerID, id int64) (*domain.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = ? AND user_id = ?`, id, ownerID)
	sub, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // not found is signalled by nil subject
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject row: %w", err)
	}
	return sub, nil
}

// CreateSubject inserts a non-default subject and sets sub.ID.
func (s *SQLiteStore) CreateSubject(ctx context.Context, sub *domain.Subject) error {
	if sub.Color == "" {
		sub.Color = domain.DefaultSubjectColor
	}
	sub.IsDefault = false
	sub.CreatedAt = time.Now()

	res, err := s.exec(ctx, "create subject",
		`INSERT INTO subjects (user_id, name, color, is_default, created_at) VALUES (?, ?, ?, 0, ?)`,
		sub.UserID, sub.Name, sub.Color, sub.CreatedAt.Unix())
	if err != nil {
		if shared.IsSQLiteUniqueError(err) {
			return fmt.Errorf("subject %q: %w", sub.Name, domain.ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get subject id: %w", err)
	}
	sub.ID = id
	return nil
}

// DeleteSubject removes a non-default subject owned by ownerID.
func (s *SQLiteStore) DeleteSubject(ctx context.Context, ownerID, id int64) error {
	return s.execOwned(ctx, "delete subject",
		`DELETE FROM subjects WHERE id = ? AND user_id = ? AND is_default = 0`, id, ownerID)
}
