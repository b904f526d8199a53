package agent

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/studyplan/internal/auth"
	"github.com/ashureev/studyplan/internal/domain"
)

type memStore struct {
	mu        sync.Mutex
	configs   map[int64]*domain.AIConfig
	pref      *domain.Preference
	reviews   []*domain.Review
	completed []*domain.Task
	since     string
}

func newMemStore() *memStore {
	return &memStore{configs: make(map[int64]*domain.AIConfig)}
}

func (m *memStore) GetAIConfig(_ context.Context, ownerID int64) (*domain.AIConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[ownerID]
	if !ok {
		return nil, nil //nolint:nilnil // mirrors the record store
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpsertAIConfig(_ context.Context, c *domain.AIConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = time.Now()
	cp := *c
	m.configs[c.UserID] = &cp
	return nil
}

func (m *memStore) GetPreference(context.Context, int64) (*domain.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pref, nil
}

func (m *memStore) ListReviews(_ context.Context, _ int64, limit int) ([]*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reviews) > limit {
		return m.reviews[:limit], nil
	}
	return m.reviews, nil
}

func (m *memStore) ListCompletedTasksSince(_ context.Context, _ int64, since string, limit int) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	if len(m.completed) > limit {
		return m.completed[:limit], nil
	}
	return m.completed, nil
}

// fakeCompleter returns a canned reply and records every request.
type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, _ *domain.AIConfig, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func (f *fakeCompleter) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompleter) last() CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeGate authorizes a fixed set of tokens; revoke removes one.
type fakeGate struct {
	mu     sync.Mutex
	tokens map[string]*domain.Principal
}

func newFakeGate() *fakeGate {
	return &fakeGate{tokens: make(map[string]*domain.Principal)}
}

func (g *fakeGate) grant(token string, userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens[token] = &domain.Principal{UserID: userID, Role: domain.RoleStandard}
}

func (g *fakeGate) revoke(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, token)
}

func (g *fakeGate) Authorize(_ context.Context, token string, reqs ...auth.Requirement) (*domain.Principal, error) {
	g.mu.Lock()
	p, ok := g.tokens[token]
	g.mu.Unlock()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	if err := auth.Check(p, reqs...); err != nil {
		return nil, err
	}
	return p, nil
}

// memLog captures conversation log events.
type memLog struct {
	mu     sync.Mutex
	events []ConversationLogEvent
	closed bool
}

func (l *memLog) Log(e ConversationLogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *memLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *memLog) snapshot() []ConversationLogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConversationLogEvent(nil), l.events...)
}
