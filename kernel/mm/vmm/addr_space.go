package vmm

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
)

var (
	// kernelPML4 is the physical address of the PML4 the bootloader left
	// active; its top half (indices 256-511) is shared, by value, with
	// every address space created afterwards.
	kernelPML4 uintptr

	// mmioNextBase walks downward from the end of the kernel's half of
	// the address space as map_mmio calls reserve ranges, mirroring the
	// teacher's EarlyReserveRegion bump allocator.
	mmioNextBase uintptr = 0xffffff0000000000
)

// CreateAddressSpace allocates a new PML4 frame and copies the kernel's
// top-half (indices 256-511) entries into it by value, so kernel code and
// data remain mapped identically in every address space (spec.md §4.2).
func CreateAddressSpace() (uintptr, *kernel.Error) {
	frame, err := frameAllocator()
	if err != nil {
		return 0, err
	}
	dst := boot.PhysToVirt(frame.Address())
	kernel.Memset(dst, 0, pmm.PageSize)

	src := boot.PhysToVirt(kernelPML4)
	for i := uintptr(256); i < 512; i++ {
		srcEntry := (*pageTableEntry)(unsafe.Pointer(src + i*8))
		dstEntry := (*pageTableEntry)(unsafe.Pointer(dst + i*8))
		*dstEntry = *srcEntry
	}

	return frame.Address(), nil
}

// CloneAddressSpace deep-clones the user half (indices 0-255) of src: for
// every present leaf it allocates a matching path of intermediate tables in
// the new address space and installs the same physical frame, clearing the
// writable bit on both the source and destination leaf when markCOW is set
// and bumping the frame's refcount so free_address_space can account for the
// shared ownership (spec.md §4.2).
func CloneAddressSpace(srcPML4 uintptr, markCOW bool) (uintptr, *kernel.Error) {
	dstPML4, err := CreateAddressSpace()
	if err != nil {
		return 0, err
	}

	if cloneErr := cloneSubtree(srcPML4, dstPML4, 0, 0, markCOW); cloneErr != nil {
		return 0, cloneErr
	}

	return dstPML4, nil
}

// cloneSubtree recursively walks one page-table level starting at level,
// copying present entries from src to dst under the virtual-address prefix
// accumulated in base. At level 0 (the PML4 itself) only the user half
// (indices 0-255) is visited; CreateAddressSpace already installed the
// kernel half by value.
func cloneSubtree(srcTablePhys, dstTablePhysRoot uintptr, base uintptr, level uint8, markCOW bool) *kernel.Error {
	// dst's table at this level is located by walking from its root using
	// the same index path MapPage below will create, so the recursion
	// never needs to track dst's intermediate table addresses itself.
	srcTable := boot.PhysToVirt(srcTablePhys)
	shift := pageLevelShifts[level]

	limit := uintptr(512)
	if level == 0 {
		limit = 256
	}

	for i := uintptr(0); i < limit; i++ {
		srcEntry := (*pageTableEntry)(unsafe.Pointer(srcTable + i*8))
		if !srcEntry.HasFlags(FlagPresent) {
			continue
		}
		virt := base | (i << shift)

		if level == pageLevels-1 {
			frame := srcEntry.Frame()
			rawFlags := (uintptr(*srcEntry) &^ ptePhysPageMask) &^ uintptr(FlagPresent)
			if markCOW {
				srcEntry.ClearFlags(FlagRW)
				srcEntry.SetFlags(FlagCopyOnWrite)
				rawFlags &^= uintptr(FlagRW)
				rawFlags |= uintptr(FlagCopyOnWrite)
			}
			pmm.RefcountInc(frame)
			if err := MapPage(dstTablePhysRoot, virt, frame.Address(), PageTableEntryFlag(rawFlags)); err != nil {
				return err
			}
			continue
		}

		if err := cloneSubtree(srcEntry.Frame().Address(), dstTablePhysRoot, virt, level+1, markCOW); err != nil {
			return err
		}
	}

	return nil
}

// FreeAddressSpace walks the user half of pml4Phys, decrementing the
// refcount of every present leaf frame, then frees the page-table frames
// themselves bottom-up (spec.md §4.2).
func FreeAddressSpace(pml4Phys uintptr) {
	freeSubtree(pml4Phys, 0, 0)
	pmm.FreeFrame(pmm.FromAddress(pml4Phys))
}

// freeSubtree walks one page-table level, freeing present leaf frames and
// recursing into present intermediate tables. At level 0 only the user half
// (indices 0-255) is visited; the kernel half's frames are shared with other
// address spaces and must outlive this one.
func freeSubtree(tablePhys uintptr, base uintptr, level uint8) {
	table := boot.PhysToVirt(tablePhys)
	shift := pageLevelShifts[level]

	limit := uintptr(512)
	if level == 0 {
		limit = 256
	}

	for i := uintptr(0); i < limit; i++ {
		entry := (*pageTableEntry)(unsafe.Pointer(table + i*8))
		if !entry.HasFlags(FlagPresent) {
			continue
		}
		frame := entry.Frame()
		if level == pageLevels-1 {
			pmm.FreeFrame(frame)
			continue
		}
		freeSubtree(frame.Address(), base|(i<<shift), level+1)
		pmm.FreeFrame(frame)
	}
}

// MapMMIO reserves a range of kernel-virtual addresses and maps it to the
// given physical range with caching disabled (PCD|PWT), for device memory
// access (spec.md §4.2).
func MapMMIO(physBase uintptr, size uintptr) (uintptr, *kernel.Error) {
	size = (size + pmm.PageSize - 1) &^ (pmm.PageSize - 1)
	mmioNextBase -= size
	virtBase := mmioNextBase

	for off := uintptr(0); off < size; off += pmm.PageSize {
		flags := FlagRW | FlagWriteThrough | FlagNoCache
		if err := MapPage(kernelPML4, virtBase+off, physBase+off, flags); err != nil {
			return 0, err
		}
	}
	return virtBase, nil
}

// DMAAlloc describes a contiguous, write-combining-mapped DMA buffer.
type DMAAlloc struct {
	Virt uintptr
	Phys uintptr
	Size uintptr
}

// AllocDMA reserves `pages` contiguous physical frames and maps them
// write-combining into the kernel's virtual address space (spec.md §4.2).
func AllocDMA(pages uint64) (DMAAlloc, *kernel.Error) {
	frame, err := pmm.AllocFrames(pages)
	if err != nil {
		return DMAAlloc{}, err
	}
	size := pages * uint64(pmm.PageSize)
	virt, err := MapMMIO(frame.Address(), uintptr(size))
	if err != nil {
		return DMAAlloc{}, err
	}
	return DMAAlloc{Virt: virt, Phys: frame.Address(), Size: uintptr(size)}, nil
}
