package pmm

import (
	"reflect"
	"unsafe"
)

// unsafeUint64Slice overlays a []uint64 of the given length on top of the raw
// memory at addr, the same reflect.SliceHeader trick the teacher uses to
// carve allocator bookkeeping structures out of bare frames before any
// allocator (including the Go one) is available.
func unsafeUint64Slice(addr uintptr, words int) []uint64 {
	return *(*[]uint64)(unsafe.Pointer(&reflect.SliceHeader{Data: addr, Len: words, Cap: words}))
}

func unsafeUint16Slice(addr uintptr, n int) []uint16 {
	return *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{Data: addr, Len: n, Cap: n}))
}
