package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestWithRetryRetriesBusyErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "op", fastPolicy, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "update task", fastPolicy, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "update task after 3 attempts")
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	sentinel := errors.New("no such table")
	calls := 0
	err := WithRetry(context.Background(), "op", fastPolicy, func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestSQLiteErrorClassifiers(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.True(t, IsSQLiteBusyError(errors.New("SQLITE_BUSY")))
	assert.True(t, IsSQLiteLockedError(errors.New("database is locked")))
	assert.True(t, IsSQLiteUniqueError(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)")))
	assert.False(t, IsSQLiteUniqueError(errors.New("FOREIGN KEY constraint failed")))
}
