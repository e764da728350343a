package reactivebridge

import (
	"sync"

	"github.com/google/uuid"
)

// RegistryState is one of the three states a Registry can be in. The zero
// value is RegistryActive.
type RegistryState int

const (
	RegistryActive RegistryState = iota
	RegistryCancelled
	RegistryDeactivated
)

func (s RegistryState) String() string {
	switch s {
	case RegistryActive:
		return "active"
	case RegistryCancelled:
		return "cancelled"
	case RegistryDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// CancelHandle is an idempotent, opaque cancel action. Implementations must
// make Cancel safe to call more than once; only the first call may have an
// effect.
type CancelHandle interface {
	// Cancel runs the handle's cancellation side effect. It is invoked at
	// most once by any single Registry, and must tolerate being called
	// concurrently with itself.
	Cancel()
	// IsCancelled reports whether Cancel has run.
	IsCancelled() bool
}

// Registry is a three-state, state-gated list of cancel handles. It is the
// shared arbitration primitive underneath Task, AwaitCancellable, the
// reactive-to-async iterator, and AsyncChannel: exactly one of
// {Cancel, Deactivate} may ever win on a given Registry, and that winner
// determines whether a surrounding operation is treated as cancelled or as
// completed.
//
// The zero value is not usable; construct one with NewRegistry.
type Registry struct {
	id uuid.UUID

	mu      sync.Mutex
	state   RegistryState
	handles []CancelHandle
}

// NewRegistry returns a new Registry in the active state.
func NewRegistry() *Registry {
	return &Registry{id: uuid.New()}
}

// State reports the registry's current state.
func (r *Registry) State() RegistryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Add registers h with the registry.
//
// In the active state, h is appended and Add returns true.
// In the cancelled state, h.Cancel is invoked synchronously (outside the
// lock) and Add returns false.
// In the deactivated state, h is silently discarded and Add returns false.
func (r *Registry) Add(h CancelHandle) bool {
	r.mu.Lock()
	switch r.state {
	case RegistryActive:
		r.handles = append(r.handles, h)
		r.mu.Unlock()
		return true
	case RegistryCancelled:
		r.mu.Unlock()
		h.Cancel()
		return false
	default: // RegistryDeactivated
		r.mu.Unlock()
		return false
	}
}

// Cancel transitions the registry active -> cancelled, then invokes every
// held handle exactly once, in insertion order. It is a no-op if the
// registry is already cancelled or deactivated.
//
// Cancel snapshots the handle list under the lock and releases the lock
// before invoking any handle, so that a handle which re-entrantly calls
// back into this registry (or into Add on another goroutine) cannot
// deadlock.
func (r *Registry) Cancel() {
	r.mu.Lock()
	if r.state != RegistryActive {
		r.mu.Unlock()
		return
	}
	r.state = RegistryCancelled
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	logger().Debug("registry cancelled", "registry", r.id, "handles", len(handles))
	for _, h := range handles {
		h.Cancel()
	}
}

// Remove detaches h from the registry without invoking it. It is a no-op
// if the registry is no longer active (in which case any handle it held
// has already been invoked or discarded) or if h was never added.
//
// Remove exists for long-lived registries such as Task's: a caller that
// registered a hook and no longer needs it (because the operation it
// guarded already resolved on its own) should detach the hook so the
// registry's handle list does not grow without bound across many
// sequential registrations.
func (r *Registry) Remove(h CancelHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RegistryActive {
		return
	}
	for i, x := range r.handles {
		if x == h {
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			return
		}
	}
}

// Deactivate transitions the registry active -> deactivated and returns
// true. If the registry is already cancelled or deactivated, it returns
// false and has no effect. Handles held by the registry are discarded, not
// cancelled.
func (r *Registry) Deactivate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RegistryActive {
		return false
	}
	r.state = RegistryDeactivated
	r.handles = nil
	return true
}

// funcCancelHandle adapts a plain function into a CancelHandle.
type funcCancelHandle struct {
	mu        sync.Mutex
	cancelled bool
	fn        func()
}

// newFuncCancelHandle returns a CancelHandle whose Cancel calls fn at most
// once.
func newFuncCancelHandle(fn func()) *funcCancelHandle {
	return &funcCancelHandle{fn: fn}
}

func (h *funcCancelHandle) Cancel() {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	fn := h.fn
	h.fn = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *funcCancelHandle) IsCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}
