package vmm

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
)

// ErrInvalidMapping is returned when a virtual address has no mapping.
var ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

// FrameAllocatorFn allocates a single physical frame. Init installs
// pmm.AllocFrame; tests install their own through SetFrameAllocator,
// matching the injectable-seam pattern the teacher uses throughout mm.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// frameAllocator backs MapPage's intermediate-table allocations. Set via
// SetFrameAllocator during kernel init.
var frameAllocator FrameAllocatorFn

// flushTLBEntryFn is overridden by tests; the real implementation issues an
// invlpg instruction.
var flushTLBEntryFn = flushTLBEntry

// SetFrameAllocator registers the allocator used for intermediate page
// tables created on demand by MapPage.
func SetFrameAllocator(fn FrameAllocatorFn) { frameAllocator = fn }

// MapPage walks/creates PML4->PDPT->PD->PT for virtAddr within the address
// space rooted at pml4Phys, installing phys with the given leaf flags. If a
// leaf entry already exists it is overwritten. Intermediate tables are
// allocated from frameAllocator, zeroed, and installed with
// PRESENT|RW|USER: the leaf's own USER bit is what actually governs access
// (spec.md §4.2).
func MapPage(pml4Phys uintptr, virtAddr uintptr, phys uintptr, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	walk(pml4Phys, virtAddr, func(level uint8, pte *pageTableEntry) bool {
		if level == pageLevels-1 {
			*pte = 0
			pte.SetFrame(pmm.FromAddress(phys))
			pte.SetFlags(FlagPresent | flags)
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			var newTableFrame pmm.Frame
			newTableFrame, err = frameAllocator()
			if err != nil {
				return false
			}
			kernel.Memset(boot.PhysToVirt(newTableFrame.Address()), 0, pmm.PageSize)
			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW | FlagUser)
		}
		return true
	})

	if err == nil && pml4Phys == activePDTFn() {
		flushTLBEntryFn(virtAddr)
	}
	return err
}

// UnmapPage clears the PRESENT bit of the leaf entry mapping virtAddr within
// pml4Phys. Returns ErrInvalidMapping if no intermediate table exists along
// the path.
func UnmapPage(pml4Phys uintptr, virtAddr uintptr) *kernel.Error {
	var err *kernel.Error

	walk(pml4Phys, virtAddr, func(level uint8, pte *pageTableEntry) bool {
		if level == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			return true
		}
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}
		return true
	})

	if err == nil && pml4Phys == activePDTFn() {
		flushTLBEntryFn(virtAddr)
	}
	return err
}

// Translate walks pml4Phys and returns the physical address virtAddr maps
// to, or ErrInvalidMapping if it is unmapped.
func Translate(pml4Phys uintptr, virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		result uintptr
		err    = ErrInvalidMapping
	)

	walk(pml4Phys, virtAddr, func(level uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}
		if level == pageLevels-1 {
			result = pte.Frame().Address() | (virtAddr & (pmm.PageSize - 1))
			err = nil
			return false
		}
		return true
	})

	return result, err
}

// PhysToVirt returns the HHDM virtual address for a physical address; it is
// a thin wrapper over the boot handoff's identity offset (spec.md §4.2).
func PhysToVirt(phys uintptr) uintptr { return boot.PhysToVirt(phys) }
