// Package freelist implements the common kernel beneath the arena, dmemory
// and pool allocators (spec.md component C3): a set of non-overlapping,
// offset-ordered free spans over a logical address range
// [0, totalSize), with first-fit-exact-or-split allocation and
// adjacency-merging free.
//
// Node storage is caller-provided (a flat slice sized by
// CalculateMemoryRequirement), mirroring the teacher's offset-linked free
// lists in threads/arena/buddy.go, which encode "next" pointers directly in
// the backing buffer rather than allocating list nodes from a heap. We keep
// that "caller owns the storage, we just index into it" contract with a
// []Node slice instead of raw bytes, since our caller is Go code and not a
// WASM module boundary.
package freelist

import (
	"math"

	"github.com/nmxmxh/vkrcore/vkrerr"
)

// invalid marks an unused size/offset field, per spec.md §3.1.
const invalid = math.MaxUint64

// nilNext marks the end of a linked chain or an unused node slot.
const nilNext int32 = -1

// Node is one slot in the caller-provided node storage: either a live free
// span (Size != invalid) with a Next link to the next span in offset order,
// or a sentinel (Size == invalid, Offset == invalid, Next == nilNext).
type Node struct {
	Offset uint64
	Size   uint64
	Next   int32
}

func (n Node) isSentinel() bool { return n.Size == invalid }

// nodeSize is the byte footprint of one Node, used to size a caller's
// backing buffer when it wants a byte count rather than a slice length
// (e.g. dmemory/pool reserving a separate VM range for freelist storage).
const nodeSize = 24

// NodeCapacity returns the number of node slots a FreeList over totalSize
// needs, via the spec's heuristic: totalSize/4096 + 16, clamped to [2,1024]
// (spec.md §3.1).
func NodeCapacity(totalSize uint64) int {
	n := int(totalSize/4096) + 16
	if n < 2 {
		n = 2
	}
	if n > 1024 {
		n = 1024
	}
	return n
}

// CalculateMemoryRequirement returns the byte size of the node storage a
// FreeList over totalSize requires, for callers that reserve a separate
// backing region (e.g. dmemory.Create's "freelist storage range").
func CalculateMemoryRequirement(totalSize uint64) uint64 {
	return uint64(NodeCapacity(totalSize)) * nodeSize
}

// FreeList tracks free (offset,size) spans over a logical [0,totalSize)
// range using caller-provided node storage.
type FreeList struct {
	nodes     []Node
	head      int32 // index of lowest-offset live span, nilNext if empty
	totalSize uint64
	nodeCap   int // recorded node capacity, for Resize's relocation math
}

// Create initializes a FreeList over [0,totalSize) using nodes as node
// storage. Fails if nodes is smaller than NodeCapacity(totalSize) requires.
func Create(nodes []Node, totalSize uint64) (*FreeList, error) {
	need := NodeCapacity(totalSize)
	if len(nodes) < need {
		return nil, vkrerr.Newf(vkrerr.InvalidArgument,
			"freelist: node storage too small: have %d slots, need %d", len(nodes), need)
	}
	fl := &FreeList{nodes: nodes, totalSize: totalSize, nodeCap: len(nodes)}
	fl.Clear()
	return fl, nil
}

// Clear re-establishes the single-span state covering [0, totalSize).
func (fl *FreeList) Clear() {
	for i := range fl.nodes {
		fl.nodes[i] = Node{Offset: invalid, Size: invalid, Next: nilNext}
	}
	fl.nodes[0] = Node{Offset: 0, Size: fl.totalSize, Next: nilNext}
	fl.head = 0
}

// Destroy zeroes bookkeeping without releasing the caller's node storage.
func (fl *FreeList) Destroy() {
	fl.nodes = nil
	fl.head = nilNext
	fl.totalSize = 0
}

// TotalSize returns the tracked logical range size.
func (fl *FreeList) TotalSize() uint64 { return fl.totalSize }

// FreeSpace sums the sizes of every live span.
func (fl *FreeList) FreeSpace() uint64 {
	var total uint64
	for i := fl.head; i != nilNext; i = fl.nodes[i].Next {
		total += fl.nodes[i].Size
	}
	return total
}

// Allocate performs first-fit-exact-or-split allocation of size bytes: the
// first span whose size equals size exactly is removed outright (its node
// is sentineled); the first span strictly larger than size is split by
// advancing its offset and shrinking its size, consuming no extra node.
// Traversal is strictly first-fit — an exact match only wins if encountered
// before a larger span would (spec.md §4.1, §9 open question: this asymmetry
// is load-bearing for bounded node budgets and must not be "fixed" away).
func (fl *FreeList) Allocate(size uint64) (uint64, bool) {
	if size == 0 || size == invalid {
		return 0, false
	}

	var prev int32 = nilNext
	for i := fl.head; i != nilNext; i = fl.nodes[i].Next {
		n := fl.nodes[i]
		switch {
		case n.Size == size:
			offset := n.Offset
			fl.unlink(prev, i)
			fl.nodes[i] = Node{Offset: invalid, Size: invalid, Next: nilNext}
			return offset, true
		case n.Size > size:
			offset := n.Offset
			fl.nodes[i].Offset += size
			fl.nodes[i].Size -= size
			return offset, true
		}
		prev = i
	}
	return 0, false
}

// Free returns the span [offset, offset+size) to the list, merging with
// adjacent live spans and rejecting overlaps (including the offset==offset
// double-free case) per spec.md §4.1.
func (fl *FreeList) Free(size, offset uint64) bool {
	if offset == invalid || size == 0 || offset+size > fl.totalSize {
		return false
	}

	if fl.head == nilNext {
		slot, ok := fl.allocSlot()
		if !ok {
			return false
		}
		fl.nodes[slot] = Node{Offset: offset, Size: size, Next: nilNext}
		fl.head = slot
		return true
	}

	blockEnd := offset + size

	var prev int32 = nilNext
	cur := fl.head
	for cur != nilNext && fl.nodes[cur].Offset < offset {
		prev = cur
		cur = fl.nodes[cur].Next
	}

	// Overlap against the previous (lower) span, including equal-offset
	// double frees.
	if prev != nilNext {
		p := fl.nodes[prev]
		if offset < p.Offset+p.Size {
			return false // double free / overlap
		}
	}
	// Overlap against the next (higher-or-equal) span.
	if cur != nilNext {
		c := fl.nodes[cur]
		if blockEnd > c.Offset {
			return false // double free / overlap
		}
	}

	mergedPrev := prev != nilNext && fl.nodes[prev].Offset+fl.nodes[prev].Size == offset
	mergedNext := cur != nilNext && blockEnd == fl.nodes[cur].Offset

	switch {
	case mergedPrev && mergedNext:
		// Absorb the freed block into prev, then collapse cur into prev too.
		fl.nodes[prev].Size += size + fl.nodes[cur].Size
		fl.unlink(prev, cur)
		fl.nodes[cur] = Node{Offset: invalid, Size: invalid, Next: nilNext}
	case mergedPrev:
		fl.nodes[prev].Size += size
	case mergedNext:
		fl.nodes[cur].Offset = offset
		fl.nodes[cur].Size += size
	default:
		slot, ok := fl.allocSlot()
		if !ok {
			return false
		}
		fl.nodes[slot] = Node{Offset: offset, Size: size, Next: cur}
		if prev == nilNext {
			fl.head = slot
		} else {
			fl.nodes[prev].Next = slot
		}
	}
	return true
}

// Resize extends the final free span when growing in place (newMem == nil),
// or relocates every live node into newMem when the node storage itself must
// grow. On relocation, oldMem (the previous node storage) is returned to the
// caller to release. Shrinking is not supported (matches dmemory's resize
// contract — spec.md §4.3 only grows).
func (fl *FreeList) Resize(newTotalSize uint64, newMem []Node) (oldMem []Node, err error) {
	if newTotalSize < fl.totalSize {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "freelist: resize cannot shrink total_size")
	}
	growth := newTotalSize - fl.totalSize

	if newMem == nil {
		// Extend the final span, or append one covering the new tail if the
		// range was fully allocated.
		var lastIdx int32 = nilNext
		for i := fl.head; i != nilNext; i = fl.nodes[i].Next {
			lastIdx = i
		}
		if lastIdx != nilNext && fl.nodes[lastIdx].Offset+fl.nodes[lastIdx].Size == fl.totalSize {
			fl.nodes[lastIdx].Size += growth
		} else {
			fl.totalSize = newTotalSize
			if !fl.Free(growth, fl.totalSize-growth) {
				return nil, vkrerr.New(vkrerr.OutOfNodes, "freelist: resize could not insert growth span")
			}
			return nil, nil
		}
		fl.totalSize = newTotalSize
		return nil, nil
	}

	need := NodeCapacity(newTotalSize)
	if len(newMem) < need {
		return nil, vkrerr.Newf(vkrerr.InvalidArgument,
			"freelist: new node storage too small: have %d, need %d", len(newMem), need)
	}

	for i := range newMem {
		newMem[i] = Node{Offset: invalid, Size: invalid, Next: nilNext}
	}

	oldNodes := fl.nodes
	oldHead := fl.head

	newHead := nilNext
	var newPrev int32 = nilNext
	slot := int32(0)
	for i := oldHead; i != nilNext; i = oldNodes[i].Next {
		newMem[slot] = Node{Offset: oldNodes[i].Offset, Size: oldNodes[i].Size, Next: nilNext}
		if newPrev == nilNext {
			newHead = slot
		} else {
			newMem[newPrev].Next = slot
		}
		newPrev = slot
		slot++
	}

	fl.nodes = newMem
	fl.head = newHead
	fl.nodeCap = len(newMem)
	oldTotal := fl.totalSize
	fl.totalSize = newTotalSize

	if growth > 0 {
		var lastIdx int32 = nilNext
		for i := fl.head; i != nilNext; i = fl.nodes[i].Next {
			lastIdx = i
		}
		if lastIdx != nilNext && fl.nodes[lastIdx].Offset+fl.nodes[lastIdx].Size == oldTotal {
			fl.nodes[lastIdx].Size += growth
		} else if !fl.Free(growth, oldTotal) {
			return nil, vkrerr.New(vkrerr.OutOfNodes, "freelist: resize could not insert growth span")
		}
	}

	return oldNodes, nil
}

// unlink removes node index i from the live chain given its predecessor
// index (nilNext if i was the head).
func (fl *FreeList) unlink(prev, i int32) {
	next := fl.nodes[i].Next
	if prev == nilNext {
		fl.head = next
	} else {
		fl.nodes[prev].Next = next
	}
}

// allocSlot finds an unused node slot. Node counts are bounded (<=1024 per
// NodeCapacity), so a linear scan is cheap and keeps this package free of a
// second bookkeeping structure beyond the caller-provided slice.
func (fl *FreeList) allocSlot() (int32, bool) {
	for i := range fl.nodes {
		if fl.nodes[i].isSentinel() {
			return int32(i), true
		}
	}
	return nilNext, false
}

// Spans returns a snapshot of the live spans in offset order, for tests and
// diagnostics.
func (fl *FreeList) Spans() []Node {
	var out []Node
	for i := fl.head; i != nilNext; i = fl.nodes[i].Next {
		out = append(out, Node{Offset: fl.nodes[i].Offset, Size: fl.nodes[i].Size, Next: nilNext})
	}
	return out
}
