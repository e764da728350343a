package reactivebridge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher is a Publisher[T] that logs every Request/Cancel call
// it receives, and lets the test drive OnNext/OnComplete/OnError by hand.
// Every logged Request also posts to reqs, so a test can block until the
// iterator has actually issued its demand before emitting a value.
type recordingPublisher[T any] struct {
	mu      sync.Mutex
	history []string
	sub     Subscriber[T]
	reqs    chan struct{}
}

func newRecordingPublisher[T any]() *recordingPublisher[T] {
	return &recordingPublisher[T]{reqs: make(chan struct{}, 64)}
}

func (p *recordingPublisher[T]) Subscribe(sub Subscriber[T]) {
	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()
	sub.OnSubscribe(&recordingSubscription[T]{p: p})
}

func (p *recordingPublisher[T]) log(s string) {
	p.mu.Lock()
	p.history = append(p.history, s)
	p.mu.Unlock()
	if s == "Request(1)" {
		p.reqs <- struct{}{}
	}
}

func (p *recordingPublisher[T]) awaitRequest() { <-p.reqs }

func (p *recordingPublisher[T]) snapshotHistory() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.history...)
}

func (p *recordingPublisher[T]) emit(v T) { p.sub.OnNext(v) }

type recordingSubscription[T any] struct {
	p *recordingPublisher[T]
}

func (s *recordingSubscription[T]) Request(n int) { s.p.log("Request(1)") }
func (s *recordingSubscription[T]) Cancel()       { s.p.log("Cancel") }

// Scenario 6: collect a 3-element prefix from an infinite stream, then drop
// it; exactly one Request per consumed value plus a trailing Cancel.
func TestIteratorPrefixAndDrop(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValues[int](pub)
	task := NewTask()

	var got []int
	valuesCh := make(chan int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range it.Seq(task) {
			got = append(got, v)
			if len(got) == 3 {
				return
			}
			valuesCh <- 0 // signal main goroutine we're ready for the next Next()
		}
	}()

	for i := 0; i < 3; i++ {
		pub.awaitRequest()
		pub.emit(100 + i)
		if i < 2 {
			<-valuesCh
		}
	}
	<-done

	assert.Equal(t, []int{100, 101, 102}, got)
	assert.Equal(t, []string{"Request(1)", "Request(1)", "Request(1)", "Cancel"}, pub.snapshotHistory())
}

func TestIteratorSingleRequestPerNext(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValues[int](pub)
	task := NewTask()

	done := make(chan struct{})
	go func() {
		v, ok, err := it.Next(task)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 5, v)
		close(done)
	}()

	pub.awaitRequest()
	pub.emit(5)
	<-done
	assert.Equal(t, []string{"Request(1)"}, pub.snapshotHistory())
}

func TestIteratorCancellationBetweenRequestAndDelivery(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValues[int](pub)
	task := NewTask()

	done := make(chan struct{})
	var err error
	go func() {
		_, _, err = it.Next(task)
		close(done)
	}()
	pub.awaitRequest()
	task.Cancel()
	<-done

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, []string{"Request(1)", "Cancel"}, pub.snapshotHistory())

	// Next call after cancellation reports end of sequence without blocking.
	_, ok, err2 := it.Next(NewTask())
	assert.False(t, ok)
	assert.ErrorIs(t, err2, ErrCancelled)
}

func TestIteratorNonThrowingMapsCancellationToEndOfSequence(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValuesNonThrowing[int](pub)
	task := NewTask()
	task.Cancel()

	_, ok, err := it.Next(task)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestIteratorCompletionEndsSequence(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValues[int](pub)
	task := NewTask()

	pub.sub.OnComplete()
	_, ok, err := it.Next(task)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestIteratorErrorSurfacesFromNext(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValues[int](pub)
	task := NewTask()

	boom := assertError("boom")
	pub.sub.OnError(boom)
	_, ok, err := it.Next(task)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestIteratorNonThrowingSwallowsUpstreamError(t *testing.T) {
	pub := newRecordingPublisher[int]()
	it := AsyncValuesNonThrowing[int](pub)
	task := NewTask()

	pub.sub.OnError(assertError("boom"))
	_, ok, err := it.Next(task)
	assert.False(t, ok)
	assert.NoError(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
