package reactivebridge

import (
	"context"

	"github.com/google/uuid"
)

// Task is this package's cooperative-cancellation unit. Unlike
// context.Context, whose cancellation notification (context.AfterFunc) is
// always dispatched on a new goroutine, Task.Cancel invokes every
// registered hook synchronously, in the calling goroutine. AwaitCancellable,
// AsyncValues and AsyncQueue.Perform rely on this to give the exact,
// deterministic callback-vs-cancel race outcomes described in their doc
// comments.
//
// The zero value is not usable; construct one with NewTask or
// TaskFromContext.
type Task struct {
	id  uuid.UUID
	reg *Registry
}

// NewTask returns a new, uncancelled root Task.
func NewTask() *Task {
	return &Task{id: uuid.New(), reg: NewRegistry()}
}

// Cancel cancels the task, synchronously invoking every hook registered via
// OnCancel that has not already run, in registration order. It is
// idempotent: only the first call has any effect.
func (t *Task) Cancel() {
	logger().Debug("task cancel", "task", t.id)
	t.reg.Cancel()
}

// IsCancelled reports whether Cancel has been called.
func (t *Task) IsCancelled() bool {
	return t.reg.State() == RegistryCancelled
}

// OnCancel registers fn to run when the task is cancelled. If the task is
// already cancelled, fn runs synchronously before OnCancel returns. The
// returned remove function unregisters fn; calling it after fn has already
// run is a harmless no-op.
func (t *Task) OnCancel(fn func()) (remove func()) {
	h := newFuncCancelHandle(fn)
	t.reg.Add(h)
	return func() { t.reg.Remove(h) }
}

// TaskFromContext adapts a context.Context into a Task. Cancellation of ctx
// propagates to the Task asynchronously, via context.AfterFunc's own
// goroutine dispatch; code requiring synchronous cancellation semantics
// (such as this package's own tests) should drive a Task directly instead
// of going through a context.Context.
//
// TaskFromContext is the production on-ramp: most callers already have a
// context.Context and want the rest of this package's primitives without
// restructuring their call tree.
func TaskFromContext(ctx context.Context) *Task {
	t := NewTask()
	if ctx.Err() != nil {
		t.Cancel()
		return t
	}
	stop := context.AfterFunc(ctx, t.Cancel)
	// Release the AfterFunc registration when the task is cancelled directly
	// rather than through ctx, so a long-lived context doesn't keep the
	// cancelled Task's bookkeeping alive.
	t.OnCancel(func() { stop() })
	return t
}
