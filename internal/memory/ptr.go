package memory

import "unsafe"

// ptrDiff returns the byte distance from base to target, both of which must
// point into the same backing array. Used to recover a block's offset from
// a slice handed back to Free/Realloc, mirroring the pointer arithmetic the
// original allocator performs directly on raw addresses.
func ptrDiff(base, target *byte) uintptr {
	return uintptr(unsafe.Pointer(target)) - uintptr(unsafe.Pointer(base))
}
