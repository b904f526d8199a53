package store

import (
	"context"
	"fmt"

	"github.com/ashureev/studyplan/internal/domain"
)

// GetStats aggregates the owner's focus time and task completion between the
// inclusive dates start and end (YYYY-MM-DD, local time).
func (s *SQLiteStore) GetStats(ctx context.Context, ownerID int64, start, end string) (*domain.Stats, error) {
	stats := &domain.Stats{
		SubjectDistribution: []domain.SubjectMinutes{},
		DailyTrend:          []domain.DailyCompletion{},
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_minutes), 0) FROM focus_sessions
		 WHERE user_id = ? AND status = 'completed'
		   AND date(start_time, 'unixepoch', 'localtime') BETWEEN ? AND ?`,
		ownerID, start, end,
	).Scan(&stats.TotalStudyMinutes)
	if err != nil {
		return nil, fmt.Errorf("query study minutes: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
		 FROM tasks WHERE user_id = ? AND task_date BETWEEN ? AND ?`,
		ownerID, start, end,
	).Scan(&stats.TotalTasks, &stats.CompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("query task totals: %w", err)
	}
	stats.CompletionRate = percent(stats.CompletedTasks, stats.TotalTasks)

	if err := s.subjectDistribution(ctx, ownerID, start, end, stats); err != nil {
		return nil, err
	}
	if err := s.dailyTrend(ctx, ownerID, start, end, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLiteStore) subjectDistribution(ctx context.Context, ownerID int64, start, end string, stats *domain.Stats) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sub.id, sub.name, sub.color, COALESCE(SUM(f.duration_minutes), 0) AS total_minutes
		 FROM subjects sub
		 LEFT JOIN focus_sessions f ON f.subject_id = sub.id
		   AND f.status = 'completed'
		   AND date(f.start_time, 'unixepoch', 'localtime') BETWEEN ? AND ?
		 WHERE sub.user_id = ?
		 GROUP BY sub.id, sub.name, sub.color
		 HAVING total_minutes > 0
		 ORDER BY total_minutes DESC`,
		start, end, ownerID)
	if err != nil {
		return fmt.Errorf("query subject distribution: %w", err)
	}
	defer closeRows(rows, "subject distribution")

	for rows.Next() {
		var sm domain.SubjectMinutes
		if err := rows.Scan(&sm.SubjectID, &sm.SubjectName, &sm.SubjectColor, &sm.TotalMinutes); err != nil {
			return fmt.Errorf("scan subject distribution row: %w", err)
		}
		stats.SubjectDistribution = append(stats.SubjectDistribution, sm)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate subject distribution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) dailyTrend(ctx context.Context, ownerID int64, start, end string, stats *domain.Stats) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_date, COUNT(*), SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END)
		 FROM tasks WHERE user_id = ? AND task_date BETWEEN ? AND ?
		 GROUP BY task_date ORDER BY task_date`,
		ownerID, start, end)
	if err != nil {
		return fmt.Errorf("query daily trend: %w", err)
	}
	defer closeRows(rows, "daily trend")

	for rows.Next() {
		var d domain.DailyCompletion
		if err := rows.Scan(&d.Date, &d.TotalTasks, &d.CompletedTasks); err != nil {
			return fmt.Errorf("scan daily trend row: %w", err)
		}
		d.CompletionRate = percent(d.CompletedTasks, d.TotalTasks)
		stats.DailyTrend = append(stats.DailyTrend, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate daily trend: %w", err)
	}
	return nil
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
