package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

const reviewColumns = `id, user_id, review_date, feelings, difficulties, ai_suggestions, created_at`

func scanReview(row rowScanner) (*domain.Review, error) {
	var (
		r         domain.Review
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.ReviewDate, &r.Feelings, &r.Difficulties, &r.AISuggestions, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}

// UpsertReview creates or replaces the owner's review for r.ReviewDate and
// reloads r from the stored row.
func (s *SQLiteStore) UpsertReview(ctx context.Context, r *domain.Review) error {
	_, err := s.exec(ctx, "upsert review",
		`INSERT INTO daily_reviews (user_id, review_date, feelings, difficulties, ai_suggestions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, review_date) DO UPDATE SET
			feelings = excluded.feelings,
			difficulties = excluded.difficulties,
			ai_suggestions = excluded.ai_suggestions`,
		r.UserID, r.ReviewDate, r.Feelings, r.Difficulties, r.AISuggestions, time.Now().Unix())
	if err != nil {
		return err
	}

	stored, err := s.GetReviewByDate(ctx, r.UserID, r.ReviewDate)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("reload review: %w", domain.ErrNotFound)
	}
	*r = *stored
	return nil
}

// GetReviewByDate retrieves the owner's review for date.
func (s *SQLiteStore) GetReviewByDate(ctx context.Context, ownerID int64, date string) (*domain.Review, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM daily_reviews WHERE user_id = ? AND review_date = ?`, ownerID, date)
	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // not found is signalled by nil review
	}
	if err != nil {
		return nil, fmt.Errorf("scan review row: %w", err)
	}
	return r, nil
}

// ListReviews returns the owner's most recent reviews first.
func (s *SQLiteStore) ListReviews(ctx context.Context, ownerID int64, limit int) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM daily_reviews WHERE user_id = ? ORDER BY review_date DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer closeRows(rows, "list reviews")

	reviews := []*domain.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}
