package vmm

import "github.com/achilleasa/uniker/kernel/mm/pmm"

// pageTableEntry is a single 64-bit amd64 page-table entry.
type pageTableEntry uintptr

// HasFlags returns true if every flag in flags is set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// SetFlags ORs flags into the entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uintptr(*pte) | uintptr(flags))
}

// ClearFlags clears flags from the entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uintptr(*pte) &^ uintptr(flags))
}

// Frame returns the physical frame this entry points at.
func (pte pageTableEntry) Frame() pmm.Frame {
	return pmm.FromAddress(uintptr(pte) & ptePhysPageMask)
}

// SetFrame updates the entry's physical frame, preserving its flags.
func (pte *pageTableEntry) SetFrame(frame pmm.Frame) {
	*pte = pageTableEntry((uintptr(*pte) &^ ptePhysPageMask) | frame.Address())
}
