package execmem

import "unsafe"

// addrOf returns the address of a mapped region's first byte. Callers
// only ever pass slices returned by unix.Mmap, which are guaranteed to
// be backed by a stable page-aligned allocation outside the Go heap,
// so taking its address this way is safe for the lifetime of the mapping.
func addrOf(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mem[0]))
}

// bytesAt reconstructs the slice unix.Munmap expects from an address
// and size previously returned by Alloc(..., nolinker=true).
func bytesAt(addr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}
