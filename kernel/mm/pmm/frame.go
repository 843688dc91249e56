// Package pmm implements the physical frame allocator (spec.md §4.1): a
// reference-counted bitmap allocator over the usable regions reported by the
// boot handoff.
package pmm

import "math"

// Frame identifies a physical 4 KiB page by its index (address / PageSize).
type Frame uintptr

// PageSize is the frame size in bytes.
const PageSize = uintptr(1 << PageShift)

// PageShift is log2(PageSize).
const PageShift = uintptr(12)

// InvalidFrame is returned by allocators on failure; callers must check
// Valid() before using the result (spec.md §4.1 failure model).
const InvalidFrame = Frame(math.MaxUint64)

// Valid reports whether f is a real frame.
func (f Frame) Valid() bool { return f != InvalidFrame }

// Address returns the physical address for this frame.
func (f Frame) Address() uintptr { return uintptr(f) << PageShift }

// FromAddress returns the frame containing the given physical address,
// rounding down if addr is not page-aligned.
func FromAddress(addr uintptr) Frame {
	return Frame(addr >> PageShift)
}
