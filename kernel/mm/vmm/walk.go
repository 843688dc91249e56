package vmm

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel/hal/boot"
)

// walkFn is invoked once per page-table level visited by walk. Returning
// false aborts the walk early (the entry at the current level was the last
// one the caller needed to inspect).
type walkFn func(level uint8, pte *pageTableEntry) bool

// entryAddr returns the HHDM virtual address of the table entry at the given
// index within the table whose physical address is tablePhys. Unlike the
// recursive self-mapping trick gopher-os uses to read inactive page tables,
// every physical page is already linearly reachable through the bootloader's
// HHDM mapping, so a page table can be read or modified regardless of
// whether it belongs to the currently active address space.
func entryAddr(tablePhys uintptr, index uintptr) uintptr {
	return boot.PhysToVirt(tablePhys) + index*8
}

// walk descends the four page-table levels rooted at pml4Phys for the given
// virtual address, invoking visit at each level. It stops as soon as visit
// returns false or after visiting the level-3 (PT) entry.
func walk(pml4Phys uintptr, virtAddr uintptr, visit walkFn) {
	tablePhys := pml4Phys
	for level := uint8(0); level < pageLevels; level++ {
		index := (virtAddr >> pageLevelShifts[level]) & pageIndexMask
		pte := (*pageTableEntry)(unsafe.Pointer(entryAddr(tablePhys, index)))
		if !visit(level, pte) {
			return
		}
		if level < pageLevels-1 {
			tablePhys = pte.Frame().Address()
		}
	}
}
