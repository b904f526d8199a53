package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

// GetAIConfig returns the owner's credential, or nil if none was saved.
func (s *SQLiteStore) GetAIConfig(ctx context.Context, ownerID int64) (*domain.AIConfig, error) {
	var (
		c         domain.AIConfig
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, api_key, model_name, api_endpoint, updated_at FROM ai_configs WHERE user_id = ?`, ownerID,
	).Scan(&c.UserID, &c.APIKey, &c.Model, &c.Endpoint, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent config is reported by the caller as not configured
	}
	if err != nil {
		return nil, fmt.Errorf("scan ai config row: %w", err)
	}
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// UpsertAIConfig creates or replaces the owner's credential.
func (s *SQLiteStore) UpsertAIConfig(ctx context.Context, c *domain.AIConfig) error {
	c.UpdatedAt = time.Now()
	_, err := s.exec(ctx, "upsert ai config",
		`INSERT INTO ai_configs (user_id, api_key, model_name, api_endpoint, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			api_key = excluded.api_key,
			model_name = excluded.model_name,
			api_endpoint = excluded.api_endpoint,
			updated_at = excluded.updated_at`,
		c.UserID, c.APIKey, c.Model, c.Endpoint, c.UpdatedAt.Unix())
	return err
}
