package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

// ListCountdowns returns the owner's countdowns, nearest target first.
func (s *SQLiteStore) ListCountdowns(ctx context.Context, ownerID int64) ([]*domain.Countdown, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, target_time, notify_enabled, created_at
		 FROM countdowns WHERE user_id = ? ORDER BY target_time ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query countdowns: %w", err)
	}
	defer closeRows(rows, "list countdowns")

	countdowns := []*domain.Countdown{}
	for rows.Next() {
		var (
			c                 domain.Countdown
			target, createdAt int64
			notify            int
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &target, &notify, &createdAt); err != nil {
			return nil, fmt.Errorf("scan countdown row: %w", err)
		}
		c.TargetTime = time.Unix(target, 0)
		c.NotifyEnabled = notify != 0
		c.CreatedAt = time.Unix(createdAt, 0)
		countdowns = append(countdowns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate countdowns: %w", err)
	}
	return countdowns, nil
}

// CreateCountdown inserts c and sets its id.
func (s *SQLiteStore) CreateCountdown(ctx context.Context, c *domain.Countdown) error {
	c.CreatedAt = time.Now()
	res, err := s.exec(ctx, "create countdown",
		`INSERT INTO countdowns (user_id, name, target_time, notify_enabled, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.TargetTime.Unix(), boolInt(c.NotifyEnabled), c.CreatedAt.Unix())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get countdown id: %w", err)
	}
	c.ID = id
	return nil
}

// DeleteCountdown removes one of the owner's countdowns.
func (s *SQLiteStore) DeleteCountdown(ctx context.Context, ownerID, id int64) error {
	return s.execOwned(ctx, "delete countdown", `DELETE FROM countdowns WHERE id = ? AND user_id = ?`, id, ownerID)
}
