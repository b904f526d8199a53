// Package planner marks daily tasks done, either by hand or by matching a
// free-text description of what was studied.
package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/similarity"
)

// DefaultThreshold is the minimum Jaro-Winkler similarity for a match.
const DefaultThreshold = 0.7

// TaskStore is the slice of the record store the matcher needs.
type TaskStore interface {
	ListTasksByDate(ctx context.Context, ownerID int64, date string) ([]*domain.Task, error)
	GetTask(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	SetTaskStatus(ctx context.Context, ownerID, id int64, status domain.TaskStatus) error
}

// Matcher auto-completes pending tasks from a description.
type Matcher struct {
	tasks     TaskStore
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides DefaultThreshold. Values outside (0, 1] are ignored.
func WithThreshold(th float64) Option {
	return func(m *Matcher) {
		if th > 0 && th <= 1 {
			m.threshold = th
		}
	}
}

// NewMatcher creates a Matcher over tasks.
func NewMatcher(tasks TaskStore, opts ...Option) *Matcher {
	m := &Matcher{tasks: tasks, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the similarity cutoff in use.
func (m *Matcher) Threshold() float64 { return m.threshold }

// CheckContent compares input against every pending task of ownerID on date
// and marks each task scoring at or above the threshold as completed. Tasks
// are visited in start-time order and every match is written; there is no
// early exit.
//
// If a write fails the remaining matches are still attempted. The returned
// slice holds only the tasks whose completion was persisted, and the error is
// the first write failure.
func (m *Matcher) CheckContent(ctx context.Context, ownerID int64, date, input string) ([]*domain.Task, error) {
	date, err := domain.NormalizeDate(date)
	if err != nil {
		return nil, domain.NewValidationError("date", err.Error())
	}

	tasks, err := m.tasks.ListTasksByDate(ctx, ownerID, date)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	matched := []*domain.Task{}
	var firstErr error
	for _, task := range tasks {
		if task.Status != domain.TaskPending {
			continue
		}
		score := similarity.JaroWinkler(input, task.Content)
		if score < m.threshold {
			continue
		}
		if err := m.tasks.SetTaskStatus(ctx, ownerID, task.ID, domain.TaskCompleted); err != nil {
			slog.Warn("Failed to complete matched task", "user_id", ownerID, "task_id", task.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("complete task %d: %w", task.ID, err)
			}
			continue
		}
		task.Status = domain.TaskCompleted
		matched = append(matched, task)
	}

	slog.Info("Task auto-completion checked", "user_id", ownerID, "date", date, "candidates", len(tasks), "matched", len(matched))
	return matched, firstErr
}

// ToggleStatus advances a task through pending, completed and failed.
func (m *Matcher) ToggleStatus(ctx context.Context, ownerID, taskID int64) (*domain.Task, error) {
	task, err := m.tasks.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}

	next := task.Status.Next()
	if err := m.tasks.SetTaskStatus(ctx, ownerID, taskID, next); err != nil {
		return nil, err
	}
	task.Status = next
	return task, nil
}
