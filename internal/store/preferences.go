package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

// GetPreference returns the owner's saved preference, or nil if none was saved.
func (s *SQLiteStore) GetPreference(ctx context.Context, ownerID int64) (*domain.Preference, error) {
	var (
		p               domain.Preference
		phase           string
		focus, weak     string
		examDate, notes sql.NullString
		updatedAt       int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, daily_hours, start_time, end_time, lunch_break_start, lunch_break_end,
		        study_phase, focus_subjects, weak_subjects, exam_date, notes, updated_at
		 FROM study_preferences WHERE user_id = ?`, ownerID,
	).Scan(&p.UserID, &p.DailyHours, &p.StartTime, &p.EndTime, &p.BreakStart, &p.BreakEnd,
		&phase, &focus, &weak, &examDate, &notes, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent preference means defaults apply
	}
	if err != nil {
		return nil, fmt.Errorf("scan preference row: %w", err)
	}

	p.Phase = domain.StudyPhase(phase)
	p.ExamDate = examDate.String
	p.Notes = notes.String
	p.UpdatedAt = time.Unix(updatedAt, 0)
	if err := json.Unmarshal([]byte(focus), &p.FocusSubjects); err != nil {
		return nil, fmt.Errorf("decode focus subjects: %w", err)
	}
	if err := json.Unmarshal([]byte(weak), &p.WeakSubjects); err != nil {
		return nil, fmt.Errorf("decode weak subjects: %w", err)
	}
	if p.FocusSubjects == nil {
		p.FocusSubjects = []string{}
	}
	if p.WeakSubjects == nil {
		p.WeakSubjects = []string{}
	}
	return &p, nil
}

// UpsertPreference creates or replaces the owner's preference.
func (s *SQLiteStore) UpsertPreference(ctx context.Context, p *domain.Preference) error {
	focus, err := json.Marshal(nonNil(p.FocusSubjects))
	if err != nil {
		return fmt.Errorf("encode focus subjects: %w", err)
	}
	weak, err := json.Marshal(nonNil(p.WeakSubjects))
	if err != nil {
		return fmt.Errorf("encode weak subjects: %w", err)
	}
	p.UpdatedAt = time.Now()

	_, err = s.exec(ctx, "upsert preference",
		`INSERT INTO study_preferences (user_id, daily_hours, start_time, end_time, lunch_break_start, lunch_break_end,
		                                study_phase, focus_subjects, weak_subjects, exam_date, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			daily_hours = excluded.daily_hours,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			lunch_break_start = excluded.lunch_break_start,
			lunch_break_end = excluded.lunch_break_end,
			study_phase = excluded.study_phase,
			focus_subjects = excluded.focus_subjects,
			weak_subjects = excluded.weak_subjects,
			exam_date = excluded.exam_date,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		p.UserID, p.DailyHours, p.StartTime, p.EndTime, p.BreakStart, p.BreakEnd,
		string(p.Phase), string(focus), string(weak), nullString(p.ExamDate), nullString(p.Notes), p.UpdatedAt.Unix())
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
