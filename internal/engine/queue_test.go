package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runQueue(t *testing.T) (*Queue, context.CancelFunc) {
	t.Helper()
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return q, cancel
}

func TestQueueExecRunsOnOwner(t *testing.T) {
	q, _ := runQueue(t)

	var onOwner bool
	require.NoError(t, q.Exec(context.Background(), func(ctx context.Context) {
		onOwner = OnOwner(ctx)
	}))
	assert.True(t, onOwner)
	assert.False(t, OnOwner(context.Background()))
}

func TestQueueInlineOnOwner(t *testing.T) {
	q, _ := runQueue(t)

	var order []string
	require.NoError(t, q.Exec(context.Background(), func(ctx context.Context) {
		order = append(order, "outer")
		// Already on the owner, so this runs before Post returns.
		assert.NoError(t, q.Post(ctx, func(context.Context) {
			order = append(order, "inner")
		}))
		order = append(order, "after")
	}))
	assert.Equal(t, []string{"outer", "inner", "after"}, order)
}

func TestQueuePostPreservesOrder(t *testing.T) {
	q, _ := runQueue(t)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 50 {
		require.NoError(t, q.Post(context.Background(), func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, q.Exec(context.Background(), func(context.Context) {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueStopped(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- q.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("queue did not stop")
	}
	assert.ErrorIs(t, q.Post(context.Background(), func(context.Context) {}), ErrQueueClosed)
	assert.ErrorIs(t, q.Exec(context.Background(), func(context.Context) {}), ErrQueueClosed)
}

func TestQueueExecHonorsCallerContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	// Nobody runs the queue, so Exec gives up with the caller.
	assert.ErrorIs(t, q.Exec(ctx, func(context.Context) {}), context.DeadlineExceeded)
}
