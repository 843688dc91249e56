package vmm

// pageLevels is the number of page-table levels walked on amd64: PML4, PDPT, PD, PT.
const pageLevels = 4

// ptePhysPageMask extracts the physical frame address (bits 12-51) from a raw entry.
const ptePhysPageMask = uintptr(0x000ffffffffff000)

// pageIndexMask extracts a 9-bit table index.
const pageIndexMask = uintptr(0x1ff)

// pageLevelShifts gives the bit shift into a virtual address for each level's index.
var pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}

// PageTableEntryFlag describes a flag applicable to a page table entry.
type PageTableEntryFlag uintptr

const (
	// FlagPresent is set when the page is mapped and resident.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page is writable.
	FlagRW

	// FlagUser is set if ring-3 code may access the page.
	FlagUser

	// FlagWriteThrough selects write-through caching.
	FlagWriteThrough

	// FlagNoCache disables caching for the page.
	FlagNoCache

	// FlagAccessed is set by the CPU on first access.
	FlagAccessed

	// FlagDirty is set by the CPU on first write.
	FlagDirty

	// FlagHuge marks a 2 MiB/1 GiB leaf at a non-terminal level; unused beyond the zero value here.
	FlagHuge

	// FlagGlobal exempts the page from TLB flushes on a CR3 switch.
	FlagGlobal

	// FlagCopyOnWrite marks a read-only shared page to be duplicated on write.
	// Mutually exclusive with FlagRW.
	FlagCopyOnWrite = 1 << 9

	// FlagNoExecute marks the page as non-executable.
	FlagNoExecute = 1 << 63
)
