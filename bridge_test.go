package reactivebridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1: bridge success.
func TestAwaitCancellableSuccess(t *testing.T) {
	task := NewTask()
	spy := &spyHandle{}

	v, err := AwaitCancellable[string](task, func(complete func(string, error)) CancelHandle {
		complete("X", nil)
		return spy
	})

	require.NoError(t, err)
	assert.Equal(t, "X", v)
	assert.Equal(t, 0, spy.cancels)
}

// Scenario 2: cancel-before-add.
func TestAwaitCancellableCancelBeforeAdd(t *testing.T) {
	task := NewTask()
	spy := &spyHandle{}

	v, err := AwaitCancellable[string](task, func(complete func(string, error)) CancelHandle {
		task.Cancel()
		complete("X", nil)
		return spy
	})

	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, "", v)
	assert.Equal(t, 1, spy.cancels)
}

// Scenario 3: cancel-during-callback, racing a barrier-released goroutine.
func TestAwaitCancellableCancelDuringCallback(t *testing.T) {
	task := NewTask()
	spy := &spyHandle{}
	barrier := make(chan struct{})
	bodyReturned := make(chan struct{})

	go func() {
		v, err := AwaitCancellable[string](task, func(complete func(string, error)) CancelHandle {
			go func() {
				<-barrier
				complete("X", nil)
			}()
			return spy
		})
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, "", v)
		close(bodyReturned)
	}()

	// Give the goroutine a moment to register its handle, then cancel, then
	// release the barrier.
	time.Sleep(20 * time.Millisecond)
	task.Cancel()
	close(barrier)

	select {
	case <-bodyReturned:
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitCancellable did not return")
	}
	assert.Equal(t, 1, spy.cancels)
}

func TestAwaitCancellableDoesNotLeakTaskHooks(t *testing.T) {
	task := NewTask()
	for i := 0; i < 1000; i++ {
		_, err := AwaitCancellable[int](task, func(complete func(int, error)) CancelHandle {
			complete(i, nil)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Empty(t, task.reg.handles, "completed AwaitCancellable calls must detach their task-level hook")
}
