package reactivebridge

import "sync"

type iterState int

const (
	iterIdle iterState = iota
	iterAwaitingSubscription
	iterAwaitingConsume
	iterAwaitingInput
	iterFinishing
	iterCancelled
	iterCompleted
)

type nextOutcome[T any] struct {
	val T
	ok  bool
}

// Iterator is a pull-based view over a demand-driven Publisher, produced by
// AsyncValues or AsyncValuesNonThrowing. It subscribes to the publisher
// once, eagerly, at construction, and drives exactly one outstanding
// Request(1) per in-flight Next call.
//
// An Iterator is not safe for concurrent use by multiple goroutines calling
// Next at the same time; like the upstream Publisher it wraps, it expects a
// single logical consumer.
type Iterator[T any] struct {
	nonThrowing bool

	mu      sync.Mutex
	state   iterState
	sub     Subscription
	pending func(nextOutcome[T], error)

	finishSet bool
	finishErr error
}

// AsyncValues adapts p into a pull-based Iterator. Failures reported by p
// via Subscriber.OnError surface from Next as an error.
func AsyncValues[T any](p Publisher[T]) *Iterator[T] {
	it := &Iterator[T]{}
	p.Subscribe(it)
	return it
}

// AsyncValuesNonThrowing adapts p into a pull-based Iterator for publishers
// that are contractually never-failing. Any OnError delivery (which should
// not happen for such a publisher, but might due to a bug upstream) is
// silently mapped to end-of-sequence rather than surfaced as an error, and
// so is cancellation: Next simply returns (zero, false, nil) instead of
// (zero, false, ErrCancelled).
func AsyncValuesNonThrowing[T any](p Publisher[T]) *Iterator[T] {
	it := &Iterator[T]{nonThrowing: true}
	p.Subscribe(it)
	return it
}

// Next blocks until the next element is available, the sequence ends, or
// task is cancelled. A true second result means val is valid; false means
// the sequence has ended (err is nil for normal completion, non-nil for
// upstream failure).
func (it *Iterator[T]) Next(task *Task) (val T, ok bool, err error) {
	out, err := AwaitCancellable[nextOutcome[T]](task, func(complete func(nextOutcome[T], error)) CancelHandle {
		return it.onConsume(complete)
	})
	if err != nil {
		if it.nonThrowing {
			var zero T
			return zero, false, nil
		}
		return out.val, false, err
	}
	return out.val, out.ok, nil
}

// Close cancels the iterator: it cancels the upstream subscription (if one
// has been received) and unblocks any Next call currently in flight with
// end-of-sequence (throwing variant: ErrCancelled). Close is idempotent.
func (it *Iterator[T]) Close() {
	it.onCancel()
}

// Seq adapts the iterator to the range-over-func shape, for
// `for v := range it.Seq(task)` consumption. The loop's early break is
// equivalent to calling Close.
func (it *Iterator[T]) Seq(task *Task) func(func(T) bool) {
	return func(yield func(T) bool) {
		for {
			v, ok, err := it.Next(task)
			if err != nil || !ok {
				return
			}
			if !yield(v) {
				it.Close()
				return
			}
		}
	}
}

func (it *Iterator[T]) onConsume(complete func(nextOutcome[T], error)) CancelHandle {
	it.mu.Lock()
	var deferred func()
	switch it.state {
	case iterIdle:
		it.state = iterAwaitingSubscription
		it.pending = complete
	case iterAwaitingConsume:
		it.state = iterAwaitingInput
		it.pending = complete
		sub := it.sub
		deferred = func() { sub.Request(1) }
	case iterFinishing:
		it.state = iterCompleted
		err := it.finishErr
		deferred = func() { complete(nextOutcome[T]{}, err) }
	case iterCancelled:
		deferred = func() { complete(nextOutcome[T]{}, ErrCancelled) }
	case iterCompleted:
		deferred = func() { complete(nextOutcome[T]{}, nil) }
	default: // iterAwaitingSubscription, iterAwaitingInput
		it.mu.Unlock()
		panic("reactivebridge: concurrent Next calls on the same Iterator")
	}
	it.mu.Unlock()

	if deferred != nil {
		deferred()
	}
	return newFuncCancelHandle(func() { it.onCancel() })
}

func (it *Iterator[T]) onCancel() {
	it.mu.Lock()
	var (
		sub     Subscription
		pending func(nextOutcome[T], error)
	)
	switch it.state {
	case iterIdle, iterFinishing:
		it.state = iterCancelled
	case iterAwaitingSubscription:
		it.state = iterCancelled
		pending, it.pending = it.pending, nil
	case iterAwaitingConsume:
		it.state = iterCancelled
		sub = it.sub
	case iterAwaitingInput:
		it.state = iterCancelled
		sub = it.sub
		pending, it.pending = it.pending, nil
	default: // iterCancelled, iterCompleted
		it.mu.Unlock()
		return
	}
	it.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if pending != nil {
		pending(nextOutcome[T]{}, ErrCancelled)
	}
}

func (it *Iterator[T]) onCompletion(err error) {
	it.mu.Lock()
	var (
		deferred func()
	)
	switch it.state {
	case iterIdle, iterAwaitingConsume:
		it.state = iterFinishing
		it.finishSet = true
		it.finishErr = err
	case iterAwaitingSubscription, iterAwaitingInput:
		it.state = iterCompleted
		complete := it.pending
		it.pending = nil
		deferred = func() { complete(nextOutcome[T]{}, err) }
	default: // iterFinishing, iterCancelled, iterCompleted: absorbed
	}
	it.mu.Unlock()

	if deferred != nil {
		deferred()
	}
}

// OnSubscribe implements Subscriber.
func (it *Iterator[T]) OnSubscribe(sub Subscription) {
	it.mu.Lock()
	var deferred func()
	switch it.state {
	case iterIdle:
		it.state = iterAwaitingConsume
		it.sub = sub
	case iterAwaitingSubscription:
		it.state = iterAwaitingInput
		it.sub = sub
		deferred = func() { sub.Request(1) }
	case iterCancelled:
		deferred = sub.Cancel
	default:
		// A well-behaved Publisher calls OnSubscribe exactly once; ignore
		// anything else defensively.
	}
	it.mu.Unlock()

	if deferred != nil {
		deferred()
	}
}

// OnNext implements Subscriber.
func (it *Iterator[T]) OnNext(v T) {
	it.mu.Lock()
	var deferred func()
	if it.state == iterAwaitingInput {
		it.state = iterAwaitingConsume
		complete := it.pending
		it.pending = nil
		deferred = func() { complete(nextOutcome[T]{val: v, ok: true}, nil) }
	}
	it.mu.Unlock()

	if deferred != nil {
		deferred()
	}
}

// OnComplete implements Subscriber.
func (it *Iterator[T]) OnComplete() { it.onCompletion(nil) }

// OnError implements Subscriber.
func (it *Iterator[T]) OnError(err error) { it.onCompletion(err) }
