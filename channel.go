package reactivebridge

import (
	"sync"

	"github.com/google/uuid"
)

// Completion describes how an AsyncChannel or Publisher ended. A zero
// Completion means normal end of stream; a non-nil Err means the stream
// ended in failure.
type Completion struct {
	Err error
}

// Finished is the normal, non-error Completion.
func Finished() Completion { return Completion{} }

// Failure wraps err as a terminal Completion.
func Failure(err error) Completion { return Completion{Err: err} }

type chanState int

const (
	chIdle chanState = iota
	chPending
	chSending
	chAwaitingDemand
	chFinished
	chCancelled
)

// AsyncChannel is a multi-subscriber broadcasting sink with rendezvous
// backpressure: Send suspends until every current subscriber has positive
// demand, delivers the value to each of them, then suspends again until
// every subscriber has demand for the next value before returning.
//
// AsyncChannel does not support more than one concurrent Send (or
// SendCompletion racing a Send); the contending call fails with
// ErrConcurrentAccess rather than queuing.
//
// The zero value is not usable; construct one with NewAsyncChannel.
type AsyncChannel[T any] struct {
	id uuid.UUID

	mu                 sync.Mutex
	state              chanState
	val                T
	pendingComplete    func(error)
	subs               []*channelSubscription[T]
	terminalCompletion Completion
}

// NewAsyncChannel returns a new, idle AsyncChannel with no subscribers.
func NewAsyncChannel[T any]() *AsyncChannel[T] {
	return &AsyncChannel[T]{id: uuid.New()}
}

type sendResult struct{}

// Send delivers v to every subscriber, suspending until every subscriber
// present at the moment of delivery has acknowledged it (by retaining or
// regaining positive demand). It fails with ErrConcurrentAccess if another
// Send or SendCompletion is already in flight, with ErrOutputToFinished if
// the channel has already reached a terminal state, and with ErrCancelled
// if task is cancelled before the send completes.
func (c *AsyncChannel[T]) Send(task *Task, v T) error {
	_, err := AwaitCancellable[sendResult](task, func(complete func(sendResult, error)) CancelHandle {
		return c.beginSend(v, complete)
	})
	return err
}

func (c *AsyncChannel[T]) beginSend(v T, complete func(sendResult, error)) CancelHandle {
	c.mu.Lock()
	switch c.state {
	case chIdle:
		c.state = chPending
		c.val = v
		c.pendingComplete = func(err error) { complete(sendResult{}, err) }
		c.mu.Unlock()
		c.checkDemandAndAdvance()
	case chFinished, chCancelled:
		c.mu.Unlock()
		complete(sendResult{}, ErrOutputToFinished)
	default: // chPending, chSending, chAwaitingDemand: another send is active
		c.mu.Unlock()
		complete(sendResult{}, ErrConcurrentAccess)
	}
	return newFuncCancelHandle(c.onSendCancel)
}

// SendCompletion synchronously and permanently terminates the channel.
// Every subscriber is notified (OnComplete or OnError, per comp). Future
// Send and SendCompletion calls fail with ErrOutputToFinished. It returns
// ErrConcurrentAccess if a Send is currently in flight.
func (c *AsyncChannel[T]) SendCompletion(comp Completion) error {
	c.mu.Lock()
	switch c.state {
	case chIdle:
		c.state = chFinished
		c.terminalCompletion = comp
		snapshot := append([]*channelSubscription[T](nil), c.subs...)
		c.mu.Unlock()
		for _, s := range snapshot {
			s.finishTerminal(comp)
		}
		logger().Debug("channel send_completion", "channel", c.id, "err", comp.Err)
		return nil
	case chFinished, chCancelled:
		c.mu.Unlock()
		return ErrOutputToFinished
	default:
		c.mu.Unlock()
		return ErrConcurrentAccess
	}
}

// Subscribe attaches sub to the channel and returns its Subscription. A
// subscriber attaching after the channel has reached a terminal state
// immediately receives the terminal completion.
func (c *AsyncChannel[T]) Subscribe(sub Subscriber[T]) Subscription {
	c.mu.Lock()
	if c.state == chFinished || c.state == chCancelled {
		comp := c.terminalCompletion
		c.mu.Unlock()
		cs := &channelSubscription[T]{state: subFinished, sub: sub, ch: c}
		sub.OnSubscribe(cs)
		if comp.Err != nil {
			sub.OnError(comp.Err)
		} else {
			sub.OnComplete()
		}
		return cs
	}
	cs := &channelSubscription[T]{sub: sub, ch: c}
	c.subs = append(c.subs, cs)
	c.mu.Unlock()
	sub.OnSubscribe(cs)
	return cs
}

// demandReadyLocked reports whether every current subscriber has positive
// demand. c.mu must be held; each subscription's own mutex is acquired and
// released individually.
func (c *AsyncChannel[T]) demandReadyLocked() bool {
	if len(c.subs) == 0 {
		return false
	}
	for _, s := range c.subs {
		if !s.hasPositiveDemand() {
			return false
		}
	}
	return true
}

// checkDemandAndAdvance implements the recheck_demand/check_demand actions:
// it advances pending -> sending -> idle|awaiting_demand, and
// awaiting_demand -> idle, whenever the demand-ready predicate newly holds.
func (c *AsyncChannel[T]) checkDemandAndAdvance() {
	c.mu.Lock()
	switch c.state {
	case chPending:
		if !c.demandReadyLocked() {
			c.mu.Unlock()
			return
		}
		v := c.val
		complete := c.pendingComplete
		snapshot := append([]*channelSubscription[T](nil), c.subs...)
		c.state = chSending
		c.mu.Unlock()

		for _, s := range snapshot {
			s.deliver(v)
		}

		c.mu.Lock()
		if c.state != chSending {
			// A concurrent cancel or finish already resolved this send.
			c.mu.Unlock()
			return
		}
		if c.demandReadyLocked() {
			c.state = chIdle
			c.pendingComplete = nil
			c.mu.Unlock()
			complete(nil)
		} else {
			c.state = chAwaitingDemand
			c.mu.Unlock()
		}
	case chAwaitingDemand:
		if !c.demandReadyLocked() {
			c.mu.Unlock()
			return
		}
		complete := c.pendingComplete
		c.state = chIdle
		c.pendingComplete = nil
		c.mu.Unlock()
		complete(nil)
	default:
		c.mu.Unlock()
	}
}

func (c *AsyncChannel[T]) onSendCancel() {
	c.mu.Lock()
	switch c.state {
	case chPending, chSending, chAwaitingDemand:
		c.state = chCancelled
		c.terminalCompletion = Finished()
		snapshot := append([]*channelSubscription[T](nil), c.subs...)
		c.pendingComplete = nil
		c.mu.Unlock()
		for _, s := range snapshot {
			s.finishTerminal(Finished())
		}
	default:
		c.mu.Unlock()
	}
}

func (c *AsyncChannel[T]) removeSubscriber(cs *channelSubscription[T]) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == cs {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	// Removing a subscriber may have unblocked the demand-ready predicate
	// for an in-flight send.
	c.checkDemandAndAdvance()
}

type subState int

const (
	subIdle subState = iota
	subHasDemand
	subFinished
)

// channelSubscription is the per-subscriber state machine (Async-subscription
// state in the design doc): idle, hasDemand(n), or finished.
type channelSubscription[T any] struct {
	ch *AsyncChannel[T]

	mu     sync.Mutex
	state  subState
	demand int
	sub    Subscriber[T]
}

// Request authorizes n further deliveries. Non-positive n is ignored.
func (cs *channelSubscription[T]) Request(n int) {
	if n <= 0 {
		return
	}
	cs.mu.Lock()
	if cs.state == subFinished {
		cs.mu.Unlock()
		return
	}
	cs.demand += n
	cs.state = subHasDemand
	cs.mu.Unlock()
	cs.ch.checkDemandAndAdvance()
}

// Cancel unsubscribes; no further deliveries occur.
func (cs *channelSubscription[T]) Cancel() {
	cs.mu.Lock()
	if cs.state == subFinished {
		cs.mu.Unlock()
		return
	}
	cs.state = subFinished
	cs.mu.Unlock()
	cs.ch.removeSubscriber(cs)
}

func (cs *channelSubscription[T]) hasPositiveDemand() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state == subHasDemand && cs.demand > 0
}

// deliver consumes one unit of demand and invokes the subscriber's OnNext
// outside the subscription's lock.
func (cs *channelSubscription[T]) deliver(v T) {
	cs.mu.Lock()
	if cs.state == subFinished {
		cs.mu.Unlock()
		return
	}
	cs.demand--
	if cs.demand <= 0 {
		cs.state = subIdle
	}
	cs.mu.Unlock()
	cs.sub.OnNext(v)
}

func (cs *channelSubscription[T]) finishTerminal(comp Completion) {
	cs.mu.Lock()
	if cs.state == subFinished {
		cs.mu.Unlock()
		return
	}
	cs.state = subFinished
	cs.mu.Unlock()
	if comp.Err != nil {
		cs.sub.OnError(comp.Err)
	} else {
		cs.sub.OnComplete()
	}
}
