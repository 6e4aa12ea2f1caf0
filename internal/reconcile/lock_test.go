package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectLocksSerializeSameProject(t *testing.T) {
	locks := NewProjectLocks()

	release, err := locks.Acquire(context.Background(), 1)
	require.NoError(t, err)

	_, ok := locks.TryAcquire(1)
	assert.False(t, ok)

	release()

	release2, ok := locks.TryAcquire(1)
	require.True(t, ok)
	release2()
}

func TestProjectLocksIndependentProjects(t *testing.T) {
	locks := NewProjectLocks()

	release1, err := locks.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release1()

	release2, ok := locks.TryAcquire(2)
	require.True(t, ok)
	release2()
}

func TestProjectLocksAcquireHonorsContext(t *testing.T) {
	locks := NewProjectLocks()

	release, err := locks.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProjectLocksHandoffToWaiter(t *testing.T) {
	locks := NewProjectLocks()

	release, err := locks.Acquire(context.Background(), 1)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := locks.Acquire(context.Background(), 1)
		if err == nil {
			r()
		}
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}
