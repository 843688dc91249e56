package heap

import "unsafe"

const ptrSize = unsafe.Sizeof(uintptr(0))

// AlignedAlloc allocates n bytes aligned to a, returning 0 on failure.
// Implementation per spec.md §4.3: over-allocate by a+sizeof(ptr), align the
// returned pointer up, and stash the raw (Alloc-returned) pointer in the
// slot immediately before it so AlignedFree can recover it.
func AlignedAlloc(a uintptr, n uintptr) uintptr {
	raw := Alloc(n + a + ptrSize)
	if raw == 0 {
		return 0
	}

	aligned := (raw + ptrSize + a - 1) &^ (a - 1)
	*(*uintptr)(unsafe.Pointer(aligned - ptrSize)) = raw
	return aligned
}

// AlignedFree releases a pointer obtained from AlignedAlloc.
func AlignedFree(ptr uintptr) {
	if ptr == 0 {
		return
	}
	raw := *(*uintptr)(unsafe.Pointer(ptr - ptrSize))
	Free(raw)
}
