// Package pool implements the fixed-size chunk allocator (spec.md C6) and
// its mutex-guarded arena-pool variant (C7), both layered on the freelist
// engine (spec.md §4.4, §4.5).
//
// Grounded on the teacher's threads/arena/slab.go for the "fixed-size
// bucket, count allocated chunks, reject foreign pointers" shape, and on
// threads/sab/epoch_allocator.go's mutex-guarded table pattern for
// ArenaPool's acquire/release-under-lock discipline.
package pool

import (
	"sync"

	"github.com/nmxmxh/vkrcore/freelist"
	"github.com/nmxmxh/vkrcore/platform"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// Pool hands out fixed-size chunks from one reserved+committed block.
type Pool struct {
	vm        platform.VM
	region    platform.Region
	data      []byte
	chunkSize uint64
	chunkCnt  uint64
	allocated uint64
	fl        *freelist.FreeList
	nodes     []freelist.Node
}

// maxAlign mirrors arena.MaxAlign; chunk sizes are always rounded up to it
// so every chunk offset is compatible with the strictest alignment a caller
// could request without exceeding chunk_size.
const maxAlign = 16

// Create reserves and commits chunkSize*chunkCount bytes (chunkSize first
// rounded up to maxAlign) and lays a freelist over the whole range.
func Create(vm platform.VM, chunkSize, chunkCount uint64) (*Pool, error) {
	if chunkSize == 0 || chunkCount == 0 {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "pool: chunkSize and chunkCount must be non-zero")
	}
	chunkSize = platform.AlignUp(chunkSize, maxAlign)

	poolSize := chunkSize * chunkCount
	if chunkCount != 0 && poolSize/chunkCount != chunkSize {
		return nil, vkrerr.New(vkrerr.Overflow, "pool: chunkSize*chunkCount overflows")
	}
	poolSize = platform.AlignUp(poolSize, platform.PageSize())

	region, err := vm.Reserve(poolSize)
	if err != nil {
		return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, "pool: reserve")
	}
	if err := vm.Commit(region, 0, poolSize); err != nil {
		_ = vm.Release(region)
		return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, "pool: commit")
	}

	nodes := make([]freelist.Node, freelist.NodeCapacity(poolSize))
	fl, err := freelist.Create(nodes, poolSize)
	if err != nil {
		_ = vm.Release(region)
		return nil, err
	}

	return &Pool{
		vm:        vm,
		region:    region,
		data:      vm.Bytes(region),
		chunkSize: chunkSize,
		chunkCnt:  chunkCount,
		fl:        fl,
		nodes:     nodes,
	}, nil
}

// ChunkSize returns the (alignment-rounded) chunk size.
func (p *Pool) ChunkSize() uint64 { return p.chunkSize }

// Allocated returns the number of chunks currently checked out.
func (p *Pool) Allocated() uint64 { return p.allocated }

// FreeChunks returns the freelist's free space divided by the chunk size.
// The freelist covers the page-aligned pool size, so this count includes
// chunk-sized room in the page-rounding slack and can exceed
// chunkCount - Allocated().
func (p *Pool) FreeChunks() uint64 { return p.fl.FreeSpace() / p.chunkSize }

// Alloc checks out one chunk.
func (p *Pool) Alloc() ([]byte, error) {
	return p.AllocAligned(p.chunkSize)
}

// AllocAligned checks out one chunk satisfying alignment, which must not
// exceed chunk_size and must evenly divide it (spec.md §4.4).
func (p *Pool) AllocAligned(alignment uint64) ([]byte, error) {
	if alignment == 0 {
		alignment = p.chunkSize
	}
	if alignment > p.chunkSize || p.chunkSize%alignment != 0 {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "pool: alignment incompatible with chunk_size")
	}
	if p.allocated >= p.chunkCnt {
		return nil, vkrerr.New(vkrerr.OutOfMemory, "pool: exhausted")
	}

	offset, ok := p.fl.Allocate(p.chunkSize)
	if !ok {
		return nil, vkrerr.New(vkrerr.OutOfMemory, "pool: no free chunk")
	}
	p.allocated++
	return p.data[offset : offset+p.chunkSize], nil
}

// Free returns ptr to the pool.
func (p *Pool) Free(ptr []byte) error {
	off := uint64(cap(p.data) - cap(ptr))
	if off%p.chunkSize != 0 || off >= uint64(len(p.data)) {
		return vkrerr.New(vkrerr.InvalidArgument, "pool: pointer not chunk-aligned or out of range")
	}
	if !p.fl.Free(p.chunkSize, off) {
		return vkrerr.New(vkrerr.Overlap, "pool: double free or corrupted chunk")
	}
	if p.allocated > 0 {
		p.allocated--
	}
	return nil
}

// Destroy releases the pool's reserved range.
func (p *Pool) Destroy() error { return p.vm.Release(p.region) }

// ArenaPool is a mutex-guarded Pool for parallel producers acquiring and
// releasing fixed-size buffers (spec.md §4.5) — e.g. a per-thread
// checkout pool for streaming mesh-load buffers.
type ArenaPool struct {
	mu   sync.Mutex
	pool *Pool
}

// NewArenaPool wraps an already-created Pool with a mutex.
func NewArenaPool(p *Pool) *ArenaPool { return &ArenaPool{pool: p} }

// Acquire checks out one chunk under the pool's mutex. A nil slice means
// the pool is exhausted.
func (ap *ArenaPool) Acquire() []byte {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	buf, err := ap.pool.Alloc()
	if err != nil {
		return nil
	}
	return buf
}

// Release returns ptr to the pool under the pool's mutex.
func (ap *ArenaPool) Release(ptr []byte) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.pool.Free(ptr)
}

// FreeChunks reports the wrapped Pool's FreeChunks under the mutex.
func (ap *ArenaPool) FreeChunks() uint64 {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.pool.FreeChunks()
}
