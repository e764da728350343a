package reactivebridge

// result carries the outcome of a one-shot continuation.
type result[T any] struct {
	val T
	err error
}

// continuation is a one-shot suspension point. It is resumed exactly once;
// a second resume panics rather than silently blocking or being dropped,
// since that would indicate this package's own invariants were violated.
type continuation[T any] struct {
	ch chan result[T]
}

func newContinuation[T any]() *continuation[T] {
	return &continuation[T]{ch: make(chan result[T], 1)}
}

func (k *continuation[T]) resume(v T, err error) {
	select {
	case k.ch <- result[T]{v, err}:
	default:
		panic("reactivebridge: continuation resumed more than once")
	}
}

func (k *continuation[T]) await() (T, error) {
	r := <-k.ch
	return r.val, r.err
}

// AwaitCancellable adapts a callback-plus-cancel-handle API into a blocking
// call that also observes cooperative cancellation of task.
//
// body is invoked synchronously by AwaitCancellable. body must call
// complete at most once, possibly from another goroutine, and may return a
// CancelHandle describing how to abort the work it started (or nil, if the
// work cannot be aborted).
//
// AwaitCancellable blocks the calling goroutine until exactly one of the
// following happens:
//   - complete is called: AwaitCancellable returns its arguments.
//   - task is cancelled: AwaitCancellable returns the zero value and
//     ErrCancelled, and, if cancellation wins the race against a concurrent
//     complete call, body's CancelHandle is invoked.
//
// These two outcomes are mutually exclusive: exactly one of them happens,
// regardless of how complete and task.Cancel race with each other.
func AwaitCancellable[T any](task *Task, body func(complete func(T, error)) CancelHandle) (T, error) {
	r := NewRegistry()
	removeTaskHook := task.OnCancel(r.Cancel)
	defer removeTaskHook()

	k := newContinuation[T]()

	var userHandle CancelHandle
	complete := func(v T, err error) {
		if r.Deactivate() {
			k.resume(v, err)
		}
		// Cancellation already won; the result is discarded.
	}

	userHandle = body(complete)

	composite := newFuncCancelHandle(func() {
		if userHandle != nil {
			userHandle.Cancel()
		}
		var zero T
		k.resume(zero, ErrCancelled)
	})
	r.Add(composite)

	return k.await()
}
