//go:build !darwin

package platform

// Non-Apple unix targets: the host's huge-page size is not queried (there is
// no portable syscall for /sys/kernel/mm/transparent_hugepage here), so 2MiB
// (the common x86_64/arm64 Linux hugepage size) is always returned.
// LargePageSize falls back to the base page size only if 2MiB is not a
// multiple of it.
func darwinOrDefaultLargePageSize() uint64 {
	return 2 * 1024 * 1024
}
