// Package session issues, validates and revokes opaque bearer tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/google/uuid"
)

// DefaultTTL is how long a session stays valid after login.
const DefaultTTL = 7 * 24 * time.Hour

// Store persists sessions. GetSession returns (nil, nil) for unknown tokens and
// must not filter expired rows; expiry is judged by the Manager's clock.
type Store interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// UserLookup resolves the current state of a session's owner.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// Manager is the session authority. All methods are safe for concurrent use;
// every Validate reads the backing store, so a completed Revoke is observed
// by every later Validate.
type Manager struct {
	store Store
	users UserLookup
	ttl   time.Duration
	now   func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over store.
func NewManager(store Store, users UserLookup, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		users: users,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the lifetime given to new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create issues a new session for userID. Tokens are random v4 UUIDs.
func (m *Manager) Create(ctx context.Context, userID int64) (*domain.Session, error) {
	issued := m.now().Truncate(time.Second)
	sess := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Validate resolves token to the caller's identity. Unknown, expired and
// orphaned tokens all yield domain.ErrUnauthenticated. Expired sessions are
// removed on the way out. The returned role is read from the user record,
// so role changes take effect without a new login.
func (m *Manager) Validate(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrUnauthenticated
	}

	if !sess.ValidAt(m.now()) {
		m.reap(ctx, token)
		return nil, domain.ErrUnauthenticated
	}

	user, err := m.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if user == nil {
		m.reap(ctx, token)
		return nil, domain.ErrUnauthenticated
	}

	return &domain.Principal{UserID: user.ID, Role: user.Role}, nil
}

// Revoke deletes the session. Revoking an unknown token succeeds.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (m *Manager) reap(ctx context.Context, token string) {
	if err := m.store.DeleteSession(ctx, token); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to reap session", "token_prefix", tokenPrefix(token), "error", err)
	}
}

// Cleanup removes every session that has expired.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	return n, nil
}

// StartCleanupRoutine periodically removes expired sessions until Close is called.
func (m *Manager) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		slog.Info("Session cleanup started", "interval", interval, "ttl", m.ttl)

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session cleanup shutting down")
				return
			case <-ticker.C:
				n, err := m.Cleanup(ctx)
				if err != nil {
					slog.Error("Session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("Expired sessions removed", "count", n)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (m *Manager) Close() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	return nil
}

// tokenPrefix returns enough of a token to correlate log lines without leaking it.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
