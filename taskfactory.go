package reactivebridge

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TaskFactory spawns cooperative tasks running a context-aware operation,
// returning a handle that supports awaiting the result or requesting
// cancellation. Go cannot express a generic method, so the generic entry
// points are the free functions SpawnTask and Detached; TaskFactory itself
// is deliberately unexported-method so only this package's factories
// (GoroutineTaskFactory, TestTaskFactory) can implement it.
type TaskFactory interface {
	spawn(parent *Task, run func(ctx context.Context)) *Task
}

// TaskHandle is the result of spawning a cooperative task via SpawnTask or
// Detached, or of AsyncQueue.Enqueue.
type TaskHandle[T any] struct {
	task *Task
	done chan struct{}
	val  T
	err  error
}

func newTaskHandle[T any]() *TaskHandle[T] {
	return &TaskHandle[T]{done: make(chan struct{})}
}

func (h *TaskHandle[T]) resolve(v T, err error) {
	h.val, h.err = v, err
	close(h.done)
}

// Await blocks until the spawned task completes, returning its result, or
// returns (zero, ErrCancelled) if task is cancelled first. Await does not
// itself cancel the spawned task; use Cancel for that.
func (h *TaskHandle[T]) Await(task *Task) (T, error) {
	cancelCh := make(chan struct{})
	remove := task.OnCancel(func() { close(cancelCh) })
	defer remove()
	select {
	case <-h.done:
		return h.val, h.err
	case <-cancelCh:
		var zero T
		return zero, ErrCancelled
	}
}

// Cancel requests cancellation of the spawned task.
func (h *TaskHandle[T]) Cancel() {
	h.task.Cancel()
}

// AwaitAll awaits every handle in hs concurrently under task, returning each
// handle's result in hs order once all of them have resolved. It returns the
// first error any handle produced (the others' results are still returned
// alongside it); if task is cancelled, every still-outstanding Await returns
// ErrCancelled, one of which is reported back as AwaitAll's error.
func AwaitAll[T any](task *Task, hs ...*TaskHandle[T]) ([]T, error) {
	results := make([]T, len(hs))
	var g errgroup.Group
	for i, h := range hs {
		i, h := i, h
		g.Go(func() error {
			v, err := h.Await(task)
			results[i] = v
			return err
		})
	}
	return results, g.Wait()
}

// SpawnTask spawns op on f, as a child of parent's cancellation (parent may
// be nil, in which case this is equivalent to Detached).
func SpawnTask[T any](f TaskFactory, parent *Task, op func(context.Context) (T, error)) *TaskHandle[T] {
	h := newTaskHandle[T]()
	h.task = f.spawn(parent, func(ctx context.Context) {
		v, err := op(ctx)
		h.resolve(v, err)
	})
	return h
}

// Detached spawns op on f without inheriting any parent task's
// cancellation.
func Detached[T any](f TaskFactory, op func(context.Context) (T, error)) *TaskHandle[T] {
	return SpawnTask[T](f, nil, op)
}

// GoroutineTaskFactory is the production TaskFactory: it spawns op on an
// ordinary goroutine, wiring a fresh child Task whose cancellation cancels
// the context.Context passed to op.
type GoroutineTaskFactory struct{}

func (GoroutineTaskFactory) spawn(parent *Task, run func(ctx context.Context)) *Task {
	child := NewTask()
	ctx, cancel := context.WithCancel(context.Background())
	child.OnCancel(cancel)

	var removeParentHook func()
	if parent != nil {
		removeParentHook = parent.OnCancel(child.Cancel)
	}
	go func() {
		run(ctx)
		// Detach from parent now that the operation has resolved on its
		// own, so a long-lived parent Task spawning many short operations
		// does not accumulate one stale hook per completed child.
		if removeParentHook != nil {
			removeParentHook()
		}
	}()
	return child
}

type pendingRun struct {
	task             *Task
	run              func(ctx context.Context)
	removeParentHook func()
}

// TestTaskFactory is a TaskFactory for deterministic tests. Spawned
// operations are not run automatically; instead they are recorded, and
// RunUntilIdle runs them one at a time, in FIFO order, including operations
// spawned transitively by operations run earlier in the same drain.
type TestTaskFactory struct {
	mu      sync.Mutex
	pending []pendingRun
}

// NewTestTaskFactory returns an empty TestTaskFactory.
func NewTestTaskFactory() *TestTaskFactory {
	return &TestTaskFactory{}
}

func (f *TestTaskFactory) spawn(parent *Task, run func(ctx context.Context)) *Task {
	child := NewTask()
	var removeParentHook func()
	if parent != nil {
		removeParentHook = parent.OnCancel(child.Cancel)
	}
	f.mu.Lock()
	f.pending = append(f.pending, pendingRun{task: child, run: run, removeParentHook: removeParentHook})
	f.mu.Unlock()
	return child
}

// RunUntilIdle runs every pending spawned operation, including ones spawned
// transitively while draining, until none remain. ctx is the base context
// passed to each operation, made cancellable per-operation via the
// operation's own Task.
func (f *TestTaskFactory) RunUntilIdle(ctx context.Context) {
	for {
		f.mu.Lock()
		if len(f.pending) == 0 {
			f.mu.Unlock()
			return
		}
		next := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()

		runCtx, cancel := context.WithCancel(ctx)
		remove := next.task.OnCancel(cancel)
		next.run(runCtx)
		remove()
		cancel()
		if next.removeParentHook != nil {
			next.removeParentHook()
		}
	}
}

// Pending reports how many operations are currently queued, for tests that
// want to assert on drain progress.
func (f *TestTaskFactory) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
