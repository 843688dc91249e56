package hal

import "unsafe"

// writePixel stores a 32-bit color value at the given framebuffer address.
func writePixel(addr uintptr, c Color) {
	*(*uint32)(unsafe.Pointer(addr)) = uint32(c)
}
