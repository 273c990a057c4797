// Package platform is the virtual-memory and timing shim the rest of the
// core allocators are built on (spec component C1). It reserves address
// space without committing it, commits/decommits pages on demand, and
// exposes page sizes, monotonic time, and a spin-tail sleep.
package platform

import "errors"

// ErrUnsupported is returned by shim operations that have no backing
// implementation on the current platform (e.g. VM reservation under wasm).
var ErrUnsupported = errors.New("platform: operation unsupported on this target")

// ErrOutOfBounds mirrors the teacher's sab.ErrOutOfBounds for callers that
// bounds-check against a reserved region.
var ErrOutOfBounds = errors.New("platform: offset out of bounds")

// Region describes one reserved virtual address range.
type Region struct {
	Base      uintptr
	Size      uint64
	Committed uint64
}

// VM is the platform virtual-memory shim. A production build uses the
// unix-backed implementation in vm_unix.go; tests and non-mmap hosts can use
// the in-memory stand-in in vm_memory.go.
type VM interface {
	// Reserve reserves size bytes of address space without committing any of
	// it. Returns the base pointer-equivalent offset into the provider's
	// backing buffer (0 is never a valid reservation).
	Reserve(size uint64) (Region, error)
	// Commit promises physical backing for [region.Base+offset, +size).
	Commit(region Region, offset, size uint64) error
	// Decommit releases physical backing for the range but keeps the
	// address range reserved.
	Decommit(region Region, offset, size uint64) error
	// Release returns the entire reservation to the OS/runtime.
	Release(region Region) error
	// Bytes returns a byte-addressable view of the region's committed range.
	// Reads/writes past Committed are undefined.
	Bytes(region Region) []byte
}

// PageSize returns the platform's base page size in bytes.
func PageSize() uint64 {
	return pageSize()
}

// LargePageSize returns the platform's large/huge page size in bytes, or
// PageSize() if the platform exposes none, or if the large size is not a
// multiple of the base page size (spec.md §6.1).
func LargePageSize() uint64 {
	large := largePageSize()
	base := pageSize()
	if large == 0 || large%base != 0 {
		return base
	}
	return large
}

// AlignUp rounds v up to the next multiple of align (align must be a power
// of two).
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
