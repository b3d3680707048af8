package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nfrund/accounts/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

func TestRedactDBURL(t *testing.T) {
	assert.Equal(t, "ws://root:xxxxx@localhost:8000/rpc", redactDBURL("ws://root:secret@localhost:8000/rpc"))
	assert.Equal(t, "ws://localhost:8000/rpc", redactDBURL("ws://localhost:8000/rpc"))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("write: broken pipe")))
	assert.True(t, isConnectionError(context.DeadlineExceeded))
	assert.False(t, isConnectionError(errors.New("Database index `account_email` already contains")))
	assert.False(t, isConnectionError(nil))
}

func TestExponentialBackoffRetryer(t *testing.T) {
	r := &ExponentialBackoffRetryer{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 5 * time.Millisecond, multiplier: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := r.Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("boom")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := r.Retry(context.Background(), func() error {
			calls++
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.Contains(t, err.Error(), "after 4 attempts")
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := r.Retry(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("delay is capped", func(t *testing.T) {
		assert.Equal(t, 5*time.Millisecond, r.calculateDelay(10))
	})
}

func TestConnection_NotConnected(t *testing.T) {
	conn := NewConnection(testutils.NewTestConfig())

	err := conn.WithConnection(context.Background(), func(*surrealdb.DB) error { return nil })
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, conn.IsHealthy())

	require.NoError(t, conn.Close(context.Background()))
	require.NoError(t, conn.Close(context.Background()), "close must be idempotent")
}

func TestConnection_Integration(t *testing.T) {
	cfg := testutils.SurrealConfigForTests(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := NewConnection(cfg)
	require.NoError(t, conn.Connect(ctx))
	defer conn.Close(context.Background())

	assert.True(t, conn.IsHealthy())
	require.NoError(t, conn.checkHealth(ctx))
}
