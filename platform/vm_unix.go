//go:build !windows

package platform

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UnixVM reserves address space with a PROT_NONE anonymous mapping and
// commits/decommits sub-ranges with mprotect/madvise, the POSIX leg of
// spec.md §6.1. Grounded on the teacher's threads/sab/hal_native.go, which
// does the same Mmap/Munmap pair with the bare "syscall" package; we reach
// for golang.org/x/sys/unix instead because the commit/decommit contract
// here additionally needs Mprotect and Madvise(MADV_DONTNEED), which the
// standard syscall package does not expose portably across unix targets.
type UnixVM struct {
	mu sync.Mutex
}

// NewUnixVM returns the production VM shim for unix-like targets.
func NewUnixVM() *UnixVM { return &UnixVM{} }

func (v *UnixVM) Reserve(size uint64) (Region, error) {
	if size == 0 {
		return Region{}, fmt.Errorf("platform: reserve size must be > 0")
	}
	size = AlignUp(size, PageSize())
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Region{}, fmt.Errorf("platform: mmap reserve %d bytes: %w", size, err)
	}
	return Region{Base: uintptr(unsafe.Pointer(&data[0])), Size: size}, nil
}

func (v *UnixVM) Commit(region Region, offset, size uint64) error {
	if offset+size > region.Size {
		return ErrOutOfBounds
	}
	data := v.slice(region, 0, region.Size)
	start := AlignUp(0, PageSize())
	_ = start
	lo := offset &^ (PageSize() - 1)
	hi := AlignUp(offset+size, PageSize())
	if hi > region.Size {
		hi = region.Size
	}
	if err := unix.Mprotect(data[lo:hi], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("platform: mprotect commit [%d,%d): %w", lo, hi, err)
	}
	return nil
}

func (v *UnixVM) Decommit(region Region, offset, size uint64) error {
	if offset+size > region.Size {
		return ErrOutOfBounds
	}
	data := v.slice(region, 0, region.Size)
	lo := offset &^ (PageSize() - 1)
	hi := AlignUp(offset+size, PageSize())
	if hi > region.Size {
		hi = region.Size
	}
	if err := unix.Madvise(data[lo:hi], unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("platform: madvise decommit [%d,%d): %w", lo, hi, err)
	}
	if err := unix.Mprotect(data[lo:hi], unix.PROT_NONE); err != nil {
		return fmt.Errorf("platform: mprotect decommit [%d,%d): %w", lo, hi, err)
	}
	return nil
}

func (v *UnixVM) Release(region Region) error {
	data := v.slice(region, 0, region.Size)
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("platform: munmap release: %w", err)
	}
	return nil
}

func (v *UnixVM) Bytes(region Region) []byte {
	return v.slice(region, 0, region.Size)
}

func (v *UnixVM) slice(region Region, offset, size uint64) []byte {
	ptr := unsafe.Pointer(region.Base + uintptr(offset))
	return unsafe.Slice((*byte)(ptr), size)
}

func pageSize() uint64 {
	return uint64(unix.Getpagesize())
}

func largePageSize() uint64 {
	return darwinOrDefaultLargePageSize()
}
