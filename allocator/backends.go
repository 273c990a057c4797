package allocator

import (
	"github.com/nmxmxh/vkrcore/arena"
	"github.com/nmxmxh/vkrcore/dmemory"
	"github.com/nmxmxh/vkrcore/memtag"
	"github.com/nmxmxh/vkrcore/pool"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// ArenaBackend adapts an arena.Arena to the Backend/Scoper interfaces.
type ArenaBackend struct {
	Arena *arena.Arena
}

func (b ArenaBackend) AllocAligned(size, alignment uint64, tag memtag.Tag) ([]byte, error) {
	// The arena's own bump allocator doesn't take an explicit alignment
	// parameter beyond MaxAlign (spec.md §4.2 always rounds up to machine
	// alignment); a caller requesting a coarser alignment than MaxAlign is
	// asking for something arenas don't support.
	if alignment > arena.MaxAlign {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "arena backend: alignment exceeds MaxAlign")
	}
	return b.Arena.Alloc(size, tag)
}

// FreeAligned is a no-op: arenas don't support freeing individual
// allocations, only scope/reset-based bulk reclamation (spec.md §4.2).
func (b ArenaBackend) FreeAligned(ptr []byte, size, alignment uint64, tag memtag.Tag) error {
	return nil
}

// ReallocAligned always allocates fresh space and copies forward, since the
// arena has no per-allocation bookkeeping to resize in place. The slice's
// own len (not a stored header) gives the byte count to copy.
func (b ArenaBackend) ReallocAligned(ptr []byte, newSize, alignment uint64, tag memtag.Tag) ([]byte, error) {
	buf, err := b.AllocAligned(newSize, alignment, tag)
	if err != nil {
		return nil, err
	}
	n := len(ptr)
	if uint64(n) > newSize {
		n = int(newSize)
	}
	copy(buf, ptr[:n])
	return buf, nil
}

// ScopeBegin snapshots the arena's bump position.
func (b ArenaBackend) ScopeBegin() any { return arena.ScratchBegin(b.Arena) }

// ScopeEnd rewinds the arena to the snapshot.
func (b ArenaBackend) ScopeEnd(token any, tag memtag.Tag) {
	arena.ScratchEnd(b.Arena, token.(arena.Scratch), tag)
}

// DMemoryBackend adapts a dmemory.DMemory to the Backend interface. Tag is
// accepted for interface symmetry but dmemory itself carries no tag
// bookkeeping — the trait layer owns it (spec.md §4.6).
type DMemoryBackend struct {
	DMemory *dmemory.DMemory
}

func (b DMemoryBackend) AllocAligned(size, alignment uint64, tag memtag.Tag) ([]byte, error) {
	return b.DMemory.AllocAligned(size, alignment)
}

func (b DMemoryBackend) FreeAligned(ptr []byte, size, alignment uint64, tag memtag.Tag) error {
	return b.DMemory.FreeAligned(ptr, size, alignment)
}

func (b DMemoryBackend) ReallocAligned(ptr []byte, newSize, alignment uint64, tag memtag.Tag) ([]byte, error) {
	return b.DMemory.ReallocAligned(ptr, newSize, alignment)
}

// PoolBackend adapts a pool.Pool to the Backend interface. size is ignored
// on alloc (every chunk is chunk_size bytes, spec.md §4.4); realloc is
// rejected since chunks cannot change size.
type PoolBackend struct {
	Pool *pool.Pool
}

func (b PoolBackend) AllocAligned(size, alignment uint64, tag memtag.Tag) ([]byte, error) {
	return b.Pool.AllocAligned(alignment)
}

func (b PoolBackend) FreeAligned(ptr []byte, size, alignment uint64, tag memtag.Tag) error {
	return b.Pool.Free(ptr)
}

func (b PoolBackend) ReallocAligned(ptr []byte, newSize, alignment uint64, tag memtag.Tag) ([]byte, error) {
	return nil, vkrerr.New(vkrerr.UsageMismatch, "pool backend: chunks are fixed-size, realloc unsupported")
}
