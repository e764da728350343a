// Package reactivebridge provides primitives that bridge callback-driven
// asynchronous APIs onto cooperative, cancellable goroutines, and that
// bridge demand-driven reactive publishers onto lazy pull-based iterators.
//
// The package builds on three tightly coupled state machines:
//
//   - [AwaitCancellable] adapts a callback-plus-cancel-handle API into a
//     blocking call that also observes cooperative cancellation.
//   - [AsyncValues] adapts a demand-driven [Publisher] into a pull-based
//     [Iterator].
//   - [AsyncChannel] delivers values from one producer to many demand-driven
//     subscribers with rendezvous backpressure: Send only returns once every
//     live subscriber has consumed the value.
//
// All three are built on [Registry], a small state-gated list of cancel
// handles that arbitrates races between an external callback completing and
// the surrounding [Task] being cancelled.
package reactivebridge
