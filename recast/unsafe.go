package recast

import "unsafe"

// samePointerSlicesUint16 reports whether two slices alias the same
// backing memory at their first element, so an overlapping copy can be
// skipped.
func samePointerSlicesUint16(a, b []uint16) bool {
	return uintptr(unsafe.Pointer(&a[0])) == uintptr(unsafe.Pointer(&b[0]))
}
