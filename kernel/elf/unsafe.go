package elf

import "unsafe"

func unsafeByteSlice(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
