package reactivebridge

// Subscription is the demand-driven upstream contract a Publisher hands
// back from Subscribe. The subscriber must call Request to authorize
// deliveries; Cancel stops further deliveries and releases any resources
// the publisher holds for this subscriber.
type Subscription interface {
	// Request authorizes up to n further calls to the subscriber's OnNext.
	// n must be positive. Requests are cumulative: calling Request(1) twice
	// authorizes two deliveries, not one.
	Request(n int)
	// Cancel tells the publisher to stop delivering to this subscriber.
	// Cancel is idempotent and may be called from any goroutine.
	Cancel()
}

// Subscriber receives events from a Publisher after calling Request on the
// Subscription handed to OnSubscribe. Exactly one of OnComplete or OnError
// is called at most once, after which no further methods are called.
type Subscriber[T any] interface {
	// OnSubscribe is called once, before any other method, with the
	// Subscription the subscriber should use to request values.
	OnSubscribe(Subscription)
	// OnNext delivers one value. The publisher must not call OnNext more
	// times than the subscriber has requested.
	OnNext(T)
	// OnComplete signals normal end of stream.
	OnComplete()
	// OnError signals the stream ended in failure.
	OnError(error)
}

// Publisher is a demand-driven, push-model source of values of type T.
type Publisher[T any] interface {
	// Subscribe attaches sub to the publisher. The publisher must call
	// sub.OnSubscribe exactly once, synchronously or asynchronously, before
	// any other Subscriber method call.
	Subscribe(sub Subscriber[T])
}

// PublisherFunc adapts a plain function into a Publisher, for publishers
// that only need to wire up a Subscription and start delivering.
type PublisherFunc[T any] func(Subscriber[T])

// Subscribe implements Publisher.
func (f PublisherFunc[T]) Subscribe(sub Subscriber[T]) { f(sub) }
