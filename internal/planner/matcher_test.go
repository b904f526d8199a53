package planner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/ashureev/studyplan/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTasks is an in-memory TaskStore that can fail writes for chosen ids.
type memTasks struct {
	mu     sync.Mutex
	tasks  []*domain.Task
	failOn map[int64]error
	writes []int64
}

func (s *memTasks) ListTasksByDate(_ context.Context, ownerID int64, date string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.UserID == ownerID && t.TaskDate == date {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTasks) GetTask(_ context.Context, ownerID, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id && t.UserID == ownerID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil //nolint:nilnil // mirrors the store contract
}

func (s *memTasks) SetTaskStatus(_ context.Context, ownerID, id int64, status domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, id)
	if err := s.failOn[id]; err != nil {
		return err
	}
	for _, t := range s.tasks {
		if t.ID == id && t.UserID == ownerID {
			t.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memTasks) status(id int64) domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Status
		}
	}
	return ""
}

func task(id int64, content string, status domain.TaskStatus) *domain.Task {
	return &domain.Task{ID: id, UserID: 1, TaskDate: "2026-03-01", Content: content, Status: status}
}

func TestCheckContentMatchesEveryPendingTask(t *testing.T) {
	st := &memTasks{tasks: []*domain.Task{
		task(1, "学习数学", domain.TaskPending),
		task(2, "背英语单词", domain.TaskPending),
		task(3, "学数学", domain.TaskPending),
		task(4, "学习数学", domain.TaskCompleted),
		task(5, "学习数学", domain.TaskFailed),
	}}
	m := NewMatcher(st)

	got, err := m.CheckContent(context.Background(), 1, "2026-03-01", "学数学")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	for _, task := range got {
		assert.Equal(t, domain.TaskCompleted, task.Status)
	}

	assert.Equal(t, domain.TaskCompleted, st.status(1))
	assert.Equal(t, domain.TaskPending, st.status(2))
	assert.Equal(t, domain.TaskFailed, st.status(5))
	assert.Equal(t, []int64{1, 3}, st.writes)
}

func TestCheckContentNoMatch(t *testing.T) {
	st := &memTasks{tasks: []*domain.Task{task(1, "背英语单词", domain.TaskPending)}}
	got, err := NewMatcher(st).CheckContent(context.Background(), 1, "2026-03-01", "政治选择题")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, st.writes)
}

func TestCheckContentIsOwnerScoped(t *testing.T) {
	other := task(9, "学数学", domain.TaskPending)
	other.UserID = 2
	st := &memTasks{tasks: []*domain.Task{other}}

	got, err := NewMatcher(st).CheckContent(context.Background(), 1, "2026-03-01", "学数学")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, domain.TaskPending, st.status(9))
}

func TestCheckContentPartialFailure(t *testing.T) {
	diskErr := errors.New("disk I/O error")
	st := &memTasks{
		tasks: []*domain.Task{
			task(1, "学数学", domain.TaskPending),
			task(2, "学数学", domain.TaskPending),
			task(3, "学数学", domain.TaskPending),
		},
		failOn: map[int64]error{2: diskErr},
	}

	got, err := NewMatcher(st).CheckContent(context.Background(), 1, "2026-03-01", "学数学")
	require.ErrorIs(t, err, diskErr)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	assert.Equal(t, []int64{1, 2, 3}, st.writes)
	assert.Equal(t, domain.TaskPending, st.status(2))
}

func TestCheckContentThreshold(t *testing.T) {
	st := &memTasks{tasks: []*domain.Task{task(1, "学习数学", domain.TaskPending)}}
	m := NewMatcher(st, WithThreshold(0.95))
	assert.InDelta(t, 0.95, m.Threshold(), 1e-9)

	got, err := m.CheckContent(context.Background(), 1, "2026-03-01", "学数学")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.InDelta(t, DefaultThreshold, NewMatcher(st, WithThreshold(1.5)).Threshold(), 1e-9)
}

func TestCheckContentRejectsBadDate(t *testing.T) {
	_, err := NewMatcher(&memTasks{}).CheckContent(context.Background(), 1, "March 1", "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestToggleStatusCycles(t *testing.T) {
	st := &memTasks{tasks: []*domain.Task{task(1, "学数学", domain.TaskPending)}}
	m := NewMatcher(st)
	ctx := context.Background()

	for _, want := range []domain.TaskStatus{domain.TaskCompleted, domain.TaskFailed, domain.TaskPending} {
		got, err := m.ToggleStatus(ctx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
		assert.Equal(t, want, st.status(1))
	}

	_, err := m.ToggleStatus(ctx, 2, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckContentAgainstSQLite(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	u := &domain.User{Username: "alice", PasswordHash: "x", DisplayName: "alice"}
	require.NoError(t, s.CreateUser(ctx, u))

	for _, c := range []struct{ start, content string }{
		{"14:00", "学数学"},
		{"08:00", "学习数学"},
		{"10:00", "背英语单词"},
	} {
		require.NoError(t, s.CreateTask(ctx, &domain.Task{
			UserID: u.ID, TaskDate: "2026-03-01", StartTime: c.start, EndTime: "23:00", Content: c.content,
		}))
	}

	got, err := NewMatcher(s).CheckContent(ctx, u.ID, "2026-03-01", "学数学")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "08:00", got[0].StartTime)
	assert.Equal(t, "14:00", got[1].StartTime)

	tasks, err := s.ListTasksByDate(ctx, u.ID, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, tasks[0].Status)
	assert.Equal(t, domain.TaskPending, tasks[1].Status)
	assert.Equal(t, domain.TaskCompleted, tasks[2].Status)
}
