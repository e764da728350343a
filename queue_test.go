package reactivebridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 7: three operations are enqueued in order 1, 2, 3, each waiting
// on its own barrier; the barriers are released in reverse order (3, 2, 1).
// Because the queue serializes execution, the completion order must still
// be 1, 2, 3.
func TestAsyncQueueSerializesInEnqueueOrder(t *testing.T) {
	q := NewAsyncQueue(GoroutineTaskFactory{})
	barrier1 := make(chan struct{})
	barrier2 := make(chan struct{})
	barrier3 := make(chan struct{})

	var mu sync.Mutex
	var order []int
	record := func(n int) {
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	}

	op := func(n int, barrier <-chan struct{}) func(context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			<-barrier
			record(n)
			return n, nil
		}
	}

	h1 := Enqueue[int](q, op(1, barrier1))
	h2 := Enqueue[int](q, op(2, barrier2))
	h3 := Enqueue[int](q, op(3, barrier3))

	// Release out of order: the third operation's barrier first.
	close(barrier3)
	close(barrier2)
	close(barrier1)

	task := NewTask()
	vals, err := AwaitAll(task, h1, h2, h3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, vals)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestAsyncQueuePerformPropagatesCancellation(t *testing.T) {
	q := NewAsyncQueue(GoroutineTaskFactory{})
	started := make(chan struct{})
	release := make(chan struct{})

	task := NewTask()
	done := make(chan struct{})
	var result error
	go func() {
		_, result = Perform[int](q, task, func(ctx context.Context) (int, error) {
			close(started)
			select {
			case <-release:
				return 1, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		})
		close(done)
	}()

	<-started
	task.Cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Perform did not return after task cancellation")
	}
	assert.ErrorIs(t, result, ErrCancelled)
}

func TestAsyncQueuePerformReturnsOperationResult(t *testing.T) {
	q := NewAsyncQueue(GoroutineTaskFactory{})
	v, err := Perform[string](q, NewTask(), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}
