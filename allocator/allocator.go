// Package allocator implements the uniform allocator trait (spec.md C8): a
// single alloc/alloc_aligned/free/free_aligned/realloc/realloc_aligned
// dispatch surface over any of the concrete allocators (arena, dmemory,
// pool), with centralized per-allocator and global atomic statistics by
// memtag.Tag, scope begin/end, and thread-safe (_ts) variants.
//
// Grounded on the teacher's threads/arena/allocator.go (HybridAllocator):
// the same "one struct in front of several concrete sub-allocators, plain
// counters for locals, atomics for the global mirror" shape, generalized
// from its two hardcoded backends (slab/buddy) to an open Backend
// interface so arena/dmemory/pool all plug in the same way.
package allocator

import (
	"sync"

	"github.com/nmxmxh/vkrcore/memtag"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// Backend is the function-pointer set every concrete allocator adapts to.
// Tag is accepted on every call because spec.md §4.6 centralizes stats
// bookkeeping at the trait layer, not inside each backend — passing it
// through lets backends that keep their own tag accounting (arena) stay
// consistent with the trait's view without the trait reaching into their
// internals.
type Backend interface {
	AllocAligned(size, alignment uint64, tag memtag.Tag) ([]byte, error)
	FreeAligned(ptr []byte, size, alignment uint64, tag memtag.Tag) error
	ReallocAligned(ptr []byte, newSize, alignment uint64, tag memtag.Tag) ([]byte, error)
}

// Scoper is implemented by backends that support begin/end scope snapshots
// backed by a real rewind (arena's bump pointer). Backends without a
// meaningful scope (dmemory, pool) simply don't implement it; Allocator
// still tracks temp-byte bookkeeping for them, it just performs no
// underlying free on EndScope (spec.md §4.6).
type Scoper interface {
	ScopeBegin() any
	ScopeEnd(token any, tag memtag.Tag)
}

// Allocator dispatches through a Backend and centralizes statistics.
type Allocator struct {
	DefaultTag memtag.Tag
	backend    Backend
	scoper     Scoper // nil if backend doesn't support scopes

	stats      Stats
	scopeStack []scopeFrame
}

type scopeFrame struct {
	snapshotBytes  uint64
	snapshotTagged [memtag.Max]uint64
	token          any
}

// New wraps backend in an Allocator. defaultTag labels this allocator's own
// identity in reports (e.g. memtag.Renderer for a renderer-scoped arena).
func New(backend Backend, defaultTag memtag.Tag) *Allocator {
	a := &Allocator{backend: backend, DefaultTag: defaultTag}
	if s, ok := backend.(Scoper); ok {
		a.scoper = s
	}
	return a
}

// Stats returns a copy of this allocator's local statistics.
func (a *Allocator) Stats() Stats { return a.stats }

// Alloc allocates size bytes at the backend's default alignment, tagged
// tag.
func (a *Allocator) Alloc(size uint64, tag memtag.Tag) ([]byte, error) {
	return a.AllocAligned(size, 0, tag)
}

// AllocAligned allocates size bytes aligned to alignment, tagged tag.
func (a *Allocator) AllocAligned(size, alignment uint64, tag memtag.Tag) ([]byte, error) {
	buf, err := a.backend.AllocAligned(size, alignment, tag)
	if err != nil {
		return nil, err
	}
	a.stats.recordAlloc(uint64(len(buf)), tag)
	global.recordAlloc(uint64(len(buf)), tag)
	return buf, nil
}

// Free releases ptr (size bytes, tagged tag) at the backend's default
// alignment.
func (a *Allocator) Free(ptr []byte, size uint64, tag memtag.Tag) error {
	return a.FreeAligned(ptr, size, 0, tag)
}

// FreeAligned releases ptr (size bytes at alignment, tagged tag).
func (a *Allocator) FreeAligned(ptr []byte, size, alignment uint64, tag memtag.Tag) error {
	if err := a.backend.FreeAligned(ptr, size, alignment, tag); err != nil {
		return err
	}
	a.stats.recordFree(size, tag)
	global.recordFree(size, tag)
	return nil
}

// Realloc reallocates ptr from oldSize to newSize at the default alignment.
func (a *Allocator) Realloc(ptr []byte, oldSize, newSize uint64, tag memtag.Tag) ([]byte, error) {
	return a.ReallocAligned(ptr, oldSize, newSize, 0, tag)
}

// ReallocAligned reallocates ptr from oldSize to newSize at alignment.
func (a *Allocator) ReallocAligned(ptr []byte, oldSize, newSize, alignment uint64, tag memtag.Tag) ([]byte, error) {
	buf, err := a.backend.ReallocAligned(ptr, newSize, alignment, tag)
	if err != nil {
		return nil, err
	}
	a.stats.recordRealloc(oldSize, uint64(len(buf)), tag)
	global.recordRealloc(oldSize, uint64(len(buf)), tag)
	return buf, nil
}

// --- thread-safe (_ts) variants: lock mu around payload + stats update ---

// AllocTS is Alloc with mu held for the whole operation.
func (a *Allocator) AllocTS(mu *sync.Mutex, size uint64, tag memtag.Tag) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	return a.Alloc(size, tag)
}

// AllocAlignedTS is AllocAligned with mu held for the whole operation.
func (a *Allocator) AllocAlignedTS(mu *sync.Mutex, size, alignment uint64, tag memtag.Tag) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	return a.AllocAligned(size, alignment, tag)
}

// FreeTS is Free with mu held for the whole operation.
func (a *Allocator) FreeTS(mu *sync.Mutex, ptr []byte, size uint64, tag memtag.Tag) error {
	mu.Lock()
	defer mu.Unlock()
	return a.Free(ptr, size, tag)
}

// FreeAlignedTS is FreeAligned with mu held for the whole operation.
func (a *Allocator) FreeAlignedTS(mu *sync.Mutex, ptr []byte, size, alignment uint64, tag memtag.Tag) error {
	mu.Lock()
	defer mu.Unlock()
	return a.FreeAligned(ptr, size, alignment, tag)
}

// ReallocTS is Realloc with mu held for the whole operation.
func (a *Allocator) ReallocTS(mu *sync.Mutex, ptr []byte, oldSize, newSize uint64, tag memtag.Tag) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	return a.Realloc(ptr, oldSize, newSize, tag)
}

// ReallocAlignedTS is ReallocAligned with mu held for the whole operation.
func (a *Allocator) ReallocAlignedTS(mu *sync.Mutex, ptr []byte, oldSize, newSize, alignment uint64, tag memtag.Tag) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	return a.ReallocAligned(ptr, oldSize, newSize, alignment, tag)
}

// BeginScope snapshots current byte counters (and, for scope-capable
// backends, the underlying rewind point) for a later EndScope
// (spec.md §4.6).
func (a *Allocator) BeginScope() {
	frame := scopeFrame{
		snapshotBytes:  a.stats.BytesAllocated,
		snapshotTagged: a.stats.TaggedBytes,
	}
	if a.scoper != nil {
		frame.token = a.scoper.ScopeBegin()
	}
	a.scopeStack = append(a.scopeStack, frame)
	a.stats.ScopesCreated++
}

// EndScope pops the most recent scope frame, rewinding the backend if it
// supports scopes, and updates temp-byte bookkeeping.
func (a *Allocator) EndScope(tag memtag.Tag) error {
	if len(a.scopeStack) == 0 {
		return vkrerr.New(vkrerr.InvalidArgument, "allocator: EndScope with no open scope")
	}
	i := len(a.scopeStack) - 1
	frame := a.scopeStack[i]
	a.scopeStack = a.scopeStack[:i]

	preRewindBytes := a.stats.BytesAllocated

	if a.scoper != nil {
		a.scoper.ScopeEnd(frame.token, tag)
		// The backend's own rewind (e.g. arena bump pointer) is the source
		// of truth for bytes actually reclaimed; mirror it back into the
		// trait's bytes-allocated counter so later scopes snapshot correctly.
		a.stats.BytesAllocated = frame.snapshotBytes
		a.stats.TaggedBytes = frame.snapshotTagged
	}

	var tempCurrent uint64
	if preRewindBytes > frame.snapshotBytes {
		tempCurrent = preRewindBytes - frame.snapshotBytes
	}
	a.stats.ScopeBytesCurrent = tempCurrent
	if tempCurrent > a.stats.ScopeBytesPeak {
		a.stats.ScopeBytesPeak = tempCurrent
	}
	a.stats.ScopesDestroyed++
	return nil
}

// ScopeDepth reports the current scope nesting depth.
func (a *Allocator) ScopeDepth() int { return len(a.scopeStack) }
