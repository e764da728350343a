package reactivebridge

import (
	"context"
	"sync"
)

// AsyncQueue serializes operations submitted via Enqueue or Perform: each
// operation starts only after its predecessor has resolved (its result,
// including any error, is ignored for sequencing purposes).
//
// The queue holds only a reference to the most recently enqueued
// operation's completion signal, guarded by a mutex that is never held
// across an await; this is the "single-writer" requirement on the last-task
// reference.
type AsyncQueue struct {
	factory TaskFactory

	mu   sync.Mutex
	last <-chan struct{}
}

// NewAsyncQueue returns an empty AsyncQueue whose operations are spawned on
// f.
func NewAsyncQueue(f TaskFactory) *AsyncQueue {
	return &AsyncQueue{factory: f}
}

// Enqueue appends op to the queue and returns a handle for its eventual
// result. op runs only after the operation enqueued immediately before it
// has resolved. If the wait for that predecessor is cancelled, op is not run
// and the handle resolves with ctx.Err() at once, so the operation enqueued
// after it may start while earlier ones are still running. Enqueue does not, by itself, propagate cancellation of any
// particular caller to the spawned operation; use Perform for that.
func Enqueue[T any](q *AsyncQueue, op func(context.Context) (T, error)) *TaskHandle[T] {
	q.mu.Lock()
	prev := q.last
	mine := make(chan struct{})
	q.last = mine
	q.mu.Unlock()

	return SpawnTask[T](q.factory, nil, func(ctx context.Context) (T, error) {
		defer close(mine)
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			}
		}
		return op(ctx)
	})
}

// Perform enqueues op and awaits its result under task. Unlike bare
// Enqueue, Perform forwards cancellation of task to the spawned operation:
// if task is cancelled before op's turn arrives or while it is running, the
// operation's own Task is cancelled too.
func Perform[T any](q *AsyncQueue, task *Task, op func(context.Context) (T, error)) (T, error) {
	h := Enqueue[T](q, op)
	remove := task.OnCancel(h.Cancel)
	defer remove()
	return h.Await(task)
}
