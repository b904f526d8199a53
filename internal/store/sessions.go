package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

// CreateSession stores a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.exec(ctx, "create session",
		`INSERT INTO sessions (token, user_id, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.IssuedAt.Unix(), sess.ExpiresAt.Unix())
	return err
}

// GetSession loads a session by token regardless of expiry.
// Expiry is judged by the caller against its own clock.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	var (
		sess              domain.Session
		issued, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, issued_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&sess.Token, &sess.UserID, &issued, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent session is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	sess.IssuedAt = time.Unix(issued, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	return &sess, nil
}

// DeleteSession removes a session. Deleting an absent token succeeds.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.exec(ctx, "delete session", `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes every session with expires_at <= now.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, "delete expired sessions", `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
