// Package dmemory implements the dynamic memory allocator (spec.md C5): a
// single reserved virtual range with a freelist-based sub-allocator, an
// alignment-aware per-allocation header, in-place growth, and realloc.
//
// Grounded on the teacher's threads/arena/buddy.go for the idiom of encoding
// bookkeeping directly into a byte buffer (writeU32/getNextFree) rather than
// a separate heap-allocated header struct — here the per-allocation header
// is encoded with encoding/binary into the bytes immediately preceding the
// returned pointer, the same "header lives in-band" discipline.
package dmemory

import (
	"encoding/binary"

	"github.com/nmxmxh/vkrcore/freelist"
	"github.com/nmxmxh/vkrcore/logx"
	"github.com/nmxmxh/vkrcore/platform"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// headerSize is the encoded size of a Header: four little-endian uint64
// fields (offset, requestSize, userSize, alignment).
const headerSize = 32

// minAlignment is the smallest alignment dmemory ever hands out, matching
// the spec's max(alignof<void*>, alignof<u64>, alignof<Header>) floor.
const minAlignment = 16

// Header precedes every user pointer in the backing buffer.
type Header struct {
	Offset      uint64
	RequestSize uint64
	UserSize    uint64
	Alignment   uint64
}

func putHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.Offset)
	binary.LittleEndian.PutUint64(buf[8:16], h.RequestSize)
	binary.LittleEndian.PutUint64(buf[16:24], h.UserSize)
	binary.LittleEndian.PutUint64(buf[24:32], h.Alignment)
}

func getHeader(buf []byte) Header {
	return Header{
		Offset:      binary.LittleEndian.Uint64(buf[0:8]),
		RequestSize: binary.LittleEndian.Uint64(buf[8:16]),
		UserSize:    binary.LittleEndian.Uint64(buf[16:24]),
		Alignment:   binary.LittleEndian.Uint64(buf[24:32]),
	}
}

// DMemory is a single reserved VM range with an embedded freelist.
//
// The spec's reference design reserves a second VM range purely to hold the
// freelist's node array, since that implementation manages node storage by
// hand. In Go the node array is a slice of structs the garbage collector
// already owns safely, so DMemory holds it as a plain []freelist.Node
// instead of mmapping and reinterpreting raw bytes as structs — an
// adaptation, not a VM range, but the freelist's "caller owns and can
// relocate the node storage" contract (spec.md §9) is preserved exactly:
// Resize still reallocates and relocates this slice as needed.
type DMemory struct {
	vm            platform.VM
	region        platform.Region
	data          []byte
	reserveSize   uint64
	totalSize     uint64
	committedSize uint64
	minAlignment  uint64
	fl            *freelist.FreeList
	nodes         []freelist.Node
}

// Create reserves reserveSize bytes and commits totalSize bytes up front,
// with an embedded freelist over [0, totalSize) (spec.md §4.3).
func Create(vm platform.VM, reserveSize, totalSize uint64) (*DMemory, error) {
	if totalSize == 0 || reserveSize < totalSize {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "dmemory: reserveSize must be >= totalSize > 0")
	}

	pageSize := platform.PageSize()
	if totalSize >= platform.LargePageSize() {
		pageSize = platform.LargePageSize()
	}

	overheadSlack := uint64(headerSize) + minAlignment
	alignedTotal := platform.AlignUp(totalSize+overheadSlack, pageSize)
	alignedReserve := platform.AlignUp(reserveSize+overheadSlack, pageSize)
	if alignedTotal > alignedReserve {
		alignedReserve = alignedTotal
	}

	region, err := vm.Reserve(alignedReserve)
	if err != nil {
		return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, "dmemory: reserve")
	}
	if err := vm.Commit(region, 0, alignedTotal); err != nil {
		_ = vm.Release(region)
		return nil, vkrerr.Wrap(vkrerr.OutOfMemory, err, "dmemory: commit initial total")
	}

	nodes := make([]freelist.Node, freelist.NodeCapacity(alignedTotal))
	fl, err := freelist.Create(nodes, alignedTotal)
	if err != nil {
		_ = vm.Release(region)
		return nil, err
	}

	return &DMemory{
		vm:            vm,
		region:        region,
		data:          vm.Bytes(region),
		reserveSize:   region.Size,
		totalSize:     alignedTotal,
		committedSize: alignedTotal,
		minAlignment:  minAlignment,
		fl:            fl,
		nodes:         nodes,
	}, nil
}

func normalizeAlignment(requested uint64) (uint64, error) {
	if requested == 0 {
		return minAlignment, nil
	}
	if requested&(requested-1) != 0 {
		return 0, vkrerr.New(vkrerr.InvalidArgument, "dmemory: alignment must be a power of two")
	}
	if requested < minAlignment {
		return minAlignment, nil
	}
	return requested, nil
}

// AllocAligned allocates userSize bytes aligned to alignment (0 selects the
// default minimum alignment), per spec.md §4.3.
func (d *DMemory) AllocAligned(userSize, alignment uint64) ([]byte, error) {
	if userSize == 0 {
		return nil, vkrerr.New(vkrerr.InvalidArgument, "dmemory: alloc size must be non-zero")
	}
	alignment, err := normalizeAlignment(alignment)
	if err != nil {
		return nil, err
	}

	requestSize := userSize + alignment + headerSize
	if requestSize < userSize {
		return nil, vkrerr.New(vkrerr.Overflow, "dmemory: request size overflow")
	}

	offset, ok := d.fl.Allocate(requestSize)
	if !ok {
		return nil, vkrerr.New(vkrerr.OutOfMemory, "dmemory: no free span large enough")
	}

	alignedOffset := platform.AlignUp(offset+headerSize, alignment)
	if alignedOffset+userSize > offset+requestSize {
		// Should never happen given the slack budgeted into requestSize, but
		// roll back rather than hand out an overrun pointer.
		d.fl.Free(requestSize, offset)
		return nil, vkrerr.New(vkrerr.Overflow, "dmemory: aligned offset overruns reserved span")
	}

	putHeader(d.data[alignedOffset-headerSize:alignedOffset], Header{
		Offset:      offset,
		RequestSize: requestSize,
		UserSize:    userSize,
		Alignment:   alignment,
	})

	// Deliberately a two-index slice (capacity runs to the end of d.data,
	// not userSize): OwnsPtr/Free/Realloc recover a pointer's offset from
	// cap(d.data)-cap(ptr), which only holds if the slice's capacity wasn't
	// separately bounded at allocation time.
	return d.data[alignedOffset : alignedOffset+userSize], nil
}

// Alloc allocates userSize bytes at the default alignment.
func (d *DMemory) Alloc(userSize uint64) ([]byte, error) { return d.AllocAligned(userSize, 0) }

func (d *DMemory) headerFor(ptr []byte) (Header, uint64, error) {
	base := d.ptrOffset(ptr)
	if base < headerSize {
		return Header{}, 0, vkrerr.New(vkrerr.InvalidArgument, "dmemory: pointer precedes header region")
	}
	h := getHeader(d.data[base-headerSize : base])
	if h.Offset+h.RequestSize > d.totalSize {
		return Header{}, 0, vkrerr.New(vkrerr.InvalidArgument, "dmemory: corrupt header")
	}
	return h, base, nil
}

// ptrOffset returns ptr's byte offset into d.data, assuming ptr is a slice
// previously returned by this DMemory.
func (d *DMemory) ptrOffset(ptr []byte) uint64 {
	return uint64(cap(d.data) - cap(ptr))
}

// FreeAligned returns ptr (with caller-supplied size/alignment, used only
// for a mismatch warning) to the freelist.
func (d *DMemory) FreeAligned(ptr []byte, size, alignment uint64) error {
	h, _, err := d.headerFor(ptr)
	if err != nil {
		return err
	}
	// A caller-supplied size/alignment mismatch is non-fatal: we always
	// free using the header's own bookkeeping, never the caller's claim.
	if na, nerr := normalizeAlignment(alignment); size != h.UserSize || nerr != nil || na != h.Alignment {
		logx.Warn("dmemory: free size/alignment differs from allocation header",
			logx.Uint64("size", size), logx.Uint64("header_size", h.UserSize),
			logx.Uint64("alignment", alignment), logx.Uint64("header_alignment", h.Alignment))
	}
	if !d.fl.Free(h.RequestSize, h.Offset) {
		return vkrerr.New(vkrerr.Overlap, "dmemory: double free or corrupted span")
	}
	return nil
}

// Free returns ptr using its header's recorded size and alignment.
func (d *DMemory) Free(ptr []byte) error {
	h, _, err := d.headerFor(ptr)
	if err != nil {
		return err
	}
	return d.FreeAligned(ptr, h.UserSize, h.Alignment)
}

// ReallocAligned implements the spec's null/zero-size matrix and otherwise
// always allocates fresh, copies min(old,new) bytes, and frees the old
// block (spec.md §4.3: "no in-place resize today").
func (d *DMemory) ReallocAligned(ptr []byte, newSize, alignment uint64) ([]byte, error) {
	if ptr == nil && newSize == 0 {
		return nil, nil
	}
	if ptr == nil {
		return d.AllocAligned(newSize, alignment)
	}
	if newSize == 0 {
		return nil, d.Free(ptr)
	}

	h, _, err := d.headerFor(ptr)
	if err != nil {
		return nil, err
	}
	align, err := normalizeAlignment(alignment)
	if err != nil {
		return nil, err
	}
	if h.Alignment > align {
		align = h.Alignment
	}

	newPtr, err := d.AllocAligned(newSize, align)
	if err != nil {
		return nil, err
	}
	n := h.UserSize
	if newSize < n {
		n = newSize
	}
	copy(newPtr, ptr[:n])
	if err := d.FreeAligned(ptr, h.UserSize, h.Alignment); err != nil {
		return nil, err
	}
	return newPtr, nil
}

// Realloc reallocates at the pointer's existing alignment.
func (d *DMemory) Realloc(ptr []byte, newSize uint64) ([]byte, error) {
	return d.ReallocAligned(ptr, newSize, 0)
}

// OwnsPtr reports whether ptr's backing array falls within this DMemory's
// reserved range.
func (d *DMemory) OwnsPtr(ptr []byte) bool {
	if cap(ptr) == 0 || cap(ptr) > cap(d.data) {
		return false
	}
	off := d.ptrOffset(ptr)
	return off < d.reserveSize
}

// UsedSpace returns the bytes currently allocated (totalSize - freeSpace).
func (d *DMemory) UsedSpace() uint64 { return d.totalSize - d.fl.FreeSpace() }

// Resize grows total_size in place, per spec.md §4.3: rejects shrink and
// rejects a target below currently used space.
func (d *DMemory) Resize(newTotal uint64) error {
	if newTotal < d.totalSize {
		return vkrerr.New(vkrerr.InvalidArgument, "dmemory: resize cannot shrink total_size")
	}
	if newTotal < d.UsedSpace() {
		return vkrerr.New(vkrerr.InvalidArgument, "dmemory: resize below used space")
	}

	overheadSlack := uint64(headerSize) + minAlignment
	alignedNewTotal := platform.AlignUp(newTotal+overheadSlack, platform.PageSize())
	if alignedNewTotal > d.reserveSize {
		return vkrerr.New(vkrerr.OutOfMemory, "dmemory: resize exceeds reserved range")
	}

	if alignedNewTotal > d.committedSize {
		if err := d.vm.Commit(d.region, d.committedSize, alignedNewTotal-d.committedSize); err != nil {
			return vkrerr.Wrap(vkrerr.OutOfMemory, err, "dmemory: commit on resize")
		}
		d.committedSize = alignedNewTotal
	}

	need := freelist.NodeCapacity(alignedNewTotal)
	if need <= len(d.nodes) {
		if _, err := d.fl.Resize(alignedNewTotal, nil); err != nil {
			return err
		}
		d.totalSize = alignedNewTotal
		return nil
	}

	newNodes := make([]freelist.Node, need)
	if _, err := d.fl.Resize(alignedNewTotal, newNodes); err != nil {
		return err
	}
	d.nodes = newNodes
	d.totalSize = alignedNewTotal
	return nil
}

// Destroy releases the reserved VM range.
func (d *DMemory) Destroy() error {
	return d.vm.Release(d.region)
}
