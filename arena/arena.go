// Package arena implements the virtual-memory arena allocator (spec.md C4):
// a linked list of commit-on-demand VM blocks with bump-pointer allocation,
// scratch save/restore, and a retired-block free list for reuse.
//
// Grounded on the teacher's threads/arena/buddy.go and allocator.go for
// struct shape and accounting idiom (plain counters, fmt.Errorf-wrapped
// failures), and on threads/foundation/epoch.go's habit of reusing one link
// field for two different chains depending on a block's lifecycle state —
// here a Block's prev field threads the live chain while current, and the
// retired stack once retired, since a block is never in both at once.
//
// An Arena is owned by a single goroutine at a time; nothing here
// synchronizes concurrent access (see pool.ArenaPool for the mutex-guarded
// wrapper used by parallel producers, spec.md §5).
package arena

import (
	"fmt"

	"github.com/nmxmxh/vkrcore/memtag"
	"github.com/nmxmxh/vkrcore/platform"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// MaxAlign is the maximum machine alignment the bump pointer rounds up to
// before every allocation.
const MaxAlign = 16

// HeaderSize is the reserved prefix of every block, mirroring the room a
// block's own bookkeeping would occupy in the teacher's buffer-resident
// structures. The bump pointer never goes below it.
const HeaderSize = 64

// Flags configures arena creation.
type Flags uint32

const (
	// FlagLargePages is recorded on the Arena at creation; block
	// reservation sizes do not depend on it.
	FlagLargePages Flags = 1 << 0
)

// Block is one VM reservation owned by an Arena.
type Block struct {
	region  platform.Region
	data    []byte
	rsv     uint64
	cmt     uint64
	pos     uint64
	basePos uint64
	prev    *Block // previous (older) live block, or next retired block once retired
}

// Arena is the head of a singly-linked list of VM blocks, newest first.
type Arena struct {
	vm         platform.VM
	current    *Block
	retired    *Block
	defaultRsv uint64
	defaultCmt uint64
	flags      Flags
	tagBytes   [memtag.Max]uint64
}

// Create reserves rsv bytes and commits cmt bytes for the arena's first
// block.
func Create(vm platform.VM, rsv, cmt uint64, flags Flags) (*Arena, error) {
	if rsv == 0 {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "arena: rsv must be non-zero")
	}
	if cmt > rsv {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "arena: cmt exceeds rsv")
	}
	blk, err := newBlock(vm, rsv, cmt, 0)
	if err != nil {
		return nil, err
	}
	return &Arena{
		vm:         vm,
		current:    blk,
		defaultRsv: rsv,
		defaultCmt: cmt,
		flags:      flags,
	}, nil
}

func newBlock(vm platform.VM, rsv, cmt, basePos uint64) (*Block, error) {
	region, err := vm.Reserve(rsv)
	if err != nil {
		return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, fmt.Sprintf("arena: reserve %d bytes", rsv))
	}
	rsv = region.Size
	cmt = platform.AlignUp(cmt, platform.PageSize())
	if cmt > rsv {
		cmt = rsv
	}
	if cmt > 0 {
		if err := vm.Commit(region, 0, cmt); err != nil {
			_ = vm.Release(region)
			return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, fmt.Sprintf("arena: commit %d bytes", cmt))
		}
	}
	return &Block{
		region:  region,
		data:    vm.Bytes(region),
		rsv:     rsv,
		cmt:     cmt,
		pos:     HeaderSize,
		basePos: basePos,
	}, nil
}

// Pos returns the arena's global logical bump position
// (current.basePos + current.pos).
func (a *Arena) Pos() uint64 { return a.current.basePos + a.current.pos }

// TagBytes returns the bytes currently attributed to tag.
func (a *Arena) TagBytes(tag memtag.Tag) uint64 { return a.tagBytes[tag] }

// Alloc returns an aligned slice of size bytes backed by the arena,
// growing or recycling blocks as needed (spec.md §4.2).
func (a *Arena) Alloc(size uint64, tag memtag.Tag) ([]byte, error) {
	if size == 0 {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "arena: alloc size must be non-zero")
	}

	cur := a.current
	posPre := platform.AlignUp(cur.pos, MaxAlign)
	posPost := posPre + size

	if posPost > cur.rsv {
		need := platform.AlignUp(size+HeaderSize, MaxAlign)
		if blk, ok := a.takeRetired(need); ok {
			blk.basePos = cur.basePos + cur.rsv
			blk.prev = cur
			a.current = blk
		} else {
			rsv, cmt := a.defaultRsv, a.defaultCmt
			if need > rsv {
				rsv, cmt = need, need
			}
			nb, err := newBlock(a.vm, rsv, cmt, cur.basePos+cur.rsv)
			if err != nil {
				return nil, err
			}
			nb.prev = cur
			a.current = nb
		}
		cur = a.current
		posPre = platform.AlignUp(cur.pos, MaxAlign)
		posPost = posPre + size
	}

	if posPost > cur.cmt {
		target := platform.AlignUp(posPost, platform.PageSize())
		if target > cur.rsv {
			target = cur.rsv
		}
		if target > cur.cmt {
			if err := a.vm.Commit(cur.region, cur.cmt, target-cur.cmt); err != nil {
				return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, "arena: commit on grow")
			}
			cur.cmt = target
		}
	}

	result := cur.data[posPre:posPost:posPost]
	cur.pos = posPost
	a.tagBytes[tag] += size
	return result, nil
}

// takeRetired unlinks and returns the first retired block whose reserved
// size is at least need.
func (a *Arena) takeRetired(need uint64) (*Block, bool) {
	var prev *Block
	for b := a.retired; b != nil; b = b.prev {
		if b.rsv >= need {
			if prev == nil {
				a.retired = b.prev
			} else {
				prev.prev = b.prev
			}
			b.prev = nil
			return b, true
		}
		prev = b
	}
	return nil, false
}

// ResetTo rewinds the arena's global logical position to target, retiring
// and decommitting every block that lies entirely at or beyond target
// (except the root block, which always remains live), and crediting the
// reclaimed bytes back out of tag (spec.md §4.2).
func (a *Arena) ResetTo(target uint64, tag memtag.Tag) {
	var reclaimed uint64
	for a.current.prev != nil && a.current.basePos >= target {
		blk := a.current
		reclaimed += blk.pos - HeaderSize
		if blk.cmt > 0 {
			_ = a.vm.Decommit(blk.region, 0, blk.cmt)
			blk.cmt = 0
		}
		blk.pos = HeaderSize
		a.current = blk.prev
		blk.prev = a.retired
		a.retired = blk
	}

	cur := a.current
	rel := uint64(0)
	if target > cur.basePos {
		rel = target - cur.basePos
	}
	if rel < HeaderSize {
		rel = HeaderSize
	}
	if rel > cur.rsv {
		rel = cur.rsv
	}
	if cur.pos > rel {
		reclaimed += cur.pos - rel
	}
	cur.pos = rel

	if reclaimed > a.tagBytes[tag] {
		a.tagBytes[tag] = 0
	} else {
		a.tagBytes[tag] -= reclaimed
	}
}

// Clear rewinds the arena to position 0.
func (a *Arena) Clear(tag memtag.Tag) { a.ResetTo(0, tag) }

// Reset rewinds the arena by n bytes from its current position, clamped at
// zero.
func (a *Arena) Reset(n uint64, tag memtag.Tag) {
	pos := a.Pos()
	target := uint64(0)
	if pos > n {
		target = pos - n
	}
	a.ResetTo(target, tag)
}

// Scratch is a stackable save point of an arena's bump pointer.
type Scratch struct {
	pos uint64
}

// ScratchBegin snapshots the arena's current position.
func ScratchBegin(a *Arena) Scratch { return Scratch{pos: a.Pos()} }

// ScratchEnd rewinds the arena back to s's snapshot, crediting tag.
func ScratchEnd(a *Arena, s Scratch, tag memtag.Tag) { a.ResetTo(s.pos, tag) }

// Destroy releases every block the arena owns, live and retired.
func (a *Arena) Destroy() error {
	var firstErr error
	for b := a.current; b != nil; {
		next := b.prev
		if err := a.vm.Release(b.region); err != nil && firstErr == nil {
			firstErr = err
		}
		b = next
	}
	for b := a.retired; b != nil; {
		next := b.prev
		if err := a.vm.Release(b.region); err != nil && firstErr == nil {
			firstErr = err
		}
		b = next
	}
	a.current = nil
	a.retired = nil
	return firstErr
}
