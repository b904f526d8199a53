// Package store provides data persistence interfaces and implementations.
//
// Reads of a single row return (nil, nil) when the row does not exist or is
// not owned by the caller. Writes that target a missing or foreign row return
// domain.ErrNotFound.
package store

import (
	"context"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

// UserRepository persists accounts.
type UserRepository interface {
	// CreateUser inserts the user, seeds its default subjects and sets u.ID.
	// A duplicate username yields domain.ErrConflict.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateDisplayName(ctx context.Context, id int64, name string) error
	// DeleteUser removes the user and, by cascade, everything it owns.
	DeleteUser(ctx context.Context, id int64) error
}

// SessionRepository persists bearer sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SubjectRepository persists study subjects.
type SubjectRepository interface {
	ListSubjects(ctx context.Context, ownerID int64) ([]*domain.Subject, error)
	GetSubject(ctx context.Context, ownerID, id int64) (*domain.Subject, error)
	CreateSubject(ctx context.Context, s *domain.Subject) error
	// DeleteSubject never removes default subjects.
	DeleteSubject(ctx context.Context, ownerID, id int64) error
}

// TaskRepository persists scheduled tasks.
type TaskRepository interface {
	// ListTasksByDate returns the owner's tasks for date ordered by start time.
	ListTasksByDate(ctx context.Context, ownerID int64, date string) ([]*domain.Task, error)
	GetTask(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	CreateTask(ctx context.Context, t *domain.Task) error
	// UpdateTask writes only the fields present in patch.
	UpdateTask(ctx context.Context, ownerID, id int64, patch domain.TaskPatch) error
	SetTaskStatus(ctx context.Context, ownerID, id int64, status domain.TaskStatus) error
	DeleteTask(ctx context.Context, ownerID, id int64) error
	// ListCompletedTasksSince returns completed tasks dated on or after since,
	// newest first, at most limit rows.
	ListCompletedTasksSince(ctx context.Context, ownerID int64, since string, limit int) ([]*domain.Task, error)
}

// CountdownRepository persists countdowns.
type CountdownRepository interface {
	ListCountdowns(ctx context.Context, ownerID int64) ([]*domain.Countdown, error)
	CreateCountdown(ctx context.Context, c *domain.Countdown) error
	DeleteCountdown(ctx context.Context, ownerID, id int64) error
}

// FocusRepository persists focus sessions.
type FocusRepository interface {
	StartFocusSession(ctx context.Context, f *domain.FocusSession) error
	FinishFocusSession(ctx context.Context, ownerID, id int64, status domain.FocusStatus, minutes int, end time.Time) error
	GetFocusSession(ctx context.Context, ownerID, id int64) (*domain.FocusSession, error)
	ListFocusSessions(ctx context.Context, ownerID int64, limit int) ([]*domain.FocusSession, error)
}

// ReviewRepository persists daily reviews.
type ReviewRepository interface {
	// UpsertReview creates or replaces the owner's review for r.ReviewDate.
	UpsertReview(ctx context.Context, r *domain.Review) error
	GetReviewByDate(ctx context.Context, ownerID int64, date string) (*domain.Review, error)
	// ListReviews returns the most recent reviews first.
	ListReviews(ctx context.Context, ownerID int64, limit int) ([]*domain.Review, error)
}

// PreferenceRepository persists study preferences.
type PreferenceRepository interface {
	GetPreference(ctx context.Context, ownerID int64) (*domain.Preference, error)
	UpsertPreference(ctx context.Context, p *domain.Preference) error
}

// AIConfigRepository persists per-user text-generation credentials.
type AIConfigRepository interface {
	GetAIConfig(ctx context.Context, ownerID int64) (*domain.AIConfig, error)
	UpsertAIConfig(ctx context.Context, c *domain.AIConfig) error
}

// StatsRepository computes study statistics.
type StatsRepository interface {
	GetStats(ctx context.Context, ownerID int64, start, end string) (*domain.Stats, error)
}

// Repository is the complete record store.
type Repository interface {
	UserRepository
	SessionRepository
	SubjectRepository
	TaskRepository
	CountdownRepository
	FocusRepository
	ReviewRepository
	PreferenceRepository
	AIConfigRepository
	StatsRepository

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error
	// Close closes the database connection.
	Close() error
}
