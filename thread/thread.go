// Package thread implements the threading primitives (spec.md C2): opaque
// Thread, Mutex and CondVar handles allocated from an arena.
//
// The underlying synchronization is native goroutines/sync.Mutex/channels —
// Go's runtime scheduler already does what the spec's platform layer would
// otherwise have to hand-roll over OS threads. What we keep from the spec is
// the handle discipline: every primitive is "allocated from an arena"
// (a small accounting slot is carved out of the arena so lifetime and tag
// accounting flow through the same path as every other allocation), and the
// opaque success/failure boolean-returning call shape.
//
// CondVar's wait/signal notification is grounded on the teacher's
// threads/foundation/epoch.go: a channel-based waiter list guarded by its
// own mutex, notified by a non-blocking send so a slow waiter never stalls
// the signaler.
package thread

import (
	"sync"

	"github.com/nmxmxh/vkrcore/arena"
	"github.com/nmxmxh/vkrcore/memtag"
)

// handleSlotSize is the size of the accounting slot carved out of the arena
// for each primitive; the primitive's real state lives in the Go value
// returned alongside it, not in this slot.
const handleSlotSize = 16

func allocHandle(a *arena.Arena) ([]byte, error) {
	return a.Alloc(handleSlotSize, memtag.Struct)
}

// Mutex is an opaque handle wrapping a native mutex.
type Mutex struct {
	slot []byte
	mu   sync.Mutex
}

// MutexCreate allocates a Mutex handle from arena a.
func MutexCreate(a *arena.Arena) (*Mutex, error) {
	slot, err := allocHandle(a)
	if err != nil {
		return nil, err
	}
	return &Mutex{slot: slot}, nil
}

// Lock acquires the mutex.
func (m *Mutex) Lock() bool {
	m.mu.Lock()
	return true
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() bool {
	m.mu.Unlock()
	return true
}

// Destroy is a no-op beyond dropping the handle; arena memory is reclaimed
// by the owning arena's reset/destroy, not per-handle.
func (m *Mutex) Destroy() bool { return true }

// CondVar is an opaque handle wrapping wait/signal notification over a
// Mutex, grounded on the waiter-channel-list pattern in
// threads/foundation/epoch.go.
type CondVar struct {
	slot      []byte
	waitersMu sync.Mutex
	waiters   []chan struct{}
}

// CondCreate allocates a CondVar handle from arena a.
func CondCreate(a *arena.Arena) (*CondVar, error) {
	slot, err := allocHandle(a)
	if err != nil {
		return nil, err
	}
	return &CondVar{slot: slot}, nil
}

// Wait releases m, blocks until Signal wakes this waiter, then reacquires m
// — the standard condition-variable contract.
func (c *CondVar) Wait(m *Mutex) bool {
	ch := make(chan struct{}, 1)
	c.waitersMu.Lock()
	c.waiters = append(c.waiters, ch)
	c.waitersMu.Unlock()

	m.Unlock()
	<-ch
	m.Lock()
	return true
}

// Signal wakes one waiter, if any, via a non-blocking send so Signal never
// blocks on a slow or gone waiter.
func (c *CondVar) Signal() bool {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	if len(c.waiters) == 0 {
		return true
	}
	ch := c.waiters[0]
	c.waiters = c.waiters[1:]
	select {
	case ch <- struct{}{}:
	default:
	}
	return true
}

// Destroy is a no-op beyond dropping the handle (see Mutex.Destroy).
func (c *CondVar) Destroy() bool { return true }

// Thread is an opaque handle over a goroutine.
type Thread struct {
	slot []byte
	done chan struct{}
}

// ThreadCreate allocates a Thread handle from arena a and starts fn(arg) on
// a new goroutine.
func ThreadCreate(a *arena.Arena, fn func(arg any), arg any) (*Thread, error) {
	slot, err := allocHandle(a)
	if err != nil {
		return nil, err
	}
	t := &Thread{slot: slot, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		fn(arg)
	}()
	return t, nil
}

// Join blocks until the thread's function returns.
func (t *Thread) Join() bool {
	<-t.done
	return true
}

// Destroy is a no-op beyond dropping the handle (see Mutex.Destroy). It
// does not implicitly join — callers must Join before Destroy if they need
// the function to have completed, matching the spec's explicit
// create/join/destroy triple.
func (t *Thread) Destroy() bool {
	if t.slot == nil {
		return false
	}
	return true
}
