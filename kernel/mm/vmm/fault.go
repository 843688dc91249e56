package vmm

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
	"github.com/achilleasa/uniker/kernel/mm/vma"
)

// FaultErrorCode mirrors the x86 page-fault error code bits (spec.md §4.2).
type FaultErrorCode uint64

const (
	// FaultPresent is set when the faulting page was present (a protection
	// violation) and clear when it was simply not mapped.
	FaultPresent FaultErrorCode = 1 << iota
	// FaultWrite is set for a write access, clear for a read.
	FaultWrite
	// FaultUser is set if the fault happened in ring 3.
	FaultUser
)

// AddressSpaceContext is what the scheduler exposes to the fault handler: the
// faulting process's page tables and its VMA list.
type AddressSpaceContext struct {
	PML4 uintptr
	VMAs *vma.List
}

// contextFn is registered by the process package during init, keeping vmm
// from importing proc (proc already imports vmm for mapping). Mirrors the
// teacher's SetFrameAllocator injection pattern.
var contextFn func() *AddressSpaceContext

// SetContextResolver registers the function handle_page_fault uses to find
// the faulting process's address space and VMA list.
func SetContextResolver(fn func() *AddressSpaceContext) { contextFn = fn }

// HandlePageFault implements the policy of spec.md §4.2. It returns true if
// the fault was resolved and the faulting instruction should be retried,
// false if the fault is unrecoverable and should route to the panic path.
func HandlePageFault(addr uintptr, errCode FaultErrorCode) bool {
	ctx := contextFn()
	if ctx == nil {
		return false
	}

	region := ctx.VMAs.Find(addr)
	if region == nil {
		// Rule 1: address outside any VMA of the current process.
		return false
	}

	page := PageFromAddress(addr)

	if errCode&FaultPresent != 0 && errCode&FaultWrite != 0 {
		// Rule 2: COW write fault.
		if !region.IsCOW {
			return false
		}
		return handleCOWWrite(ctx.PML4, page, region)
	}

	if errCode&FaultPresent == 0 {
		// Rule 3: not-present fault within a valid VMA.
		switch region.Tag {
		case vma.Anonymous, vma.Heap, vma.Stack:
			return demandFillZero(ctx.PML4, page, region)
		default:
			// Text/Data: a mapping was expected to already exist.
			return false
		}
	}

	// Rule 4.
	return false
}

func handleCOWWrite(pml4 uintptr, page Page, region *vma.Node) bool {
	oldPhys, err := Translate(pml4, page.Address())
	if err != nil {
		return false
	}
	oldFrame := pmm.FromAddress(oldPhys)

	flags := vmaFlagsToPTE(region.Flags)

	if pmm.Refcount(oldFrame) <= 1 {
		// Sole owner: promote in place instead of copying.
		if mapErr := MapPage(pml4, page.Address(), oldPhys, flags); mapErr != nil {
			return false
		}
		return true
	}

	newFrame, err := frameAllocator()
	if err != nil {
		return false
	}
	kernel.Memcopy(boot.PhysToVirt(oldFrame.Address()), boot.PhysToVirt(newFrame.Address()), pmm.PageSize)

	if mapErr := MapPage(pml4, page.Address(), newFrame.Address(), flags); mapErr != nil {
		return false
	}
	pmm.RefcountDec(oldFrame)
	return true
}

func demandFillZero(pml4 uintptr, page Page, region *vma.Node) bool {
	frame, err := frameAllocator()
	if err != nil {
		return false
	}
	kernel.Memset(boot.PhysToVirt(frame.Address()), 0, pmm.PageSize)

	flags := vmaFlagsToPTE(region.Flags)
	if mapErr := MapPage(pml4, page.Address(), frame.Address(), flags); mapErr != nil {
		return false
	}
	return true
}

func vmaFlagsToPTE(f vma.Flag) PageTableEntryFlag {
	var flags PageTableEntryFlag = FlagRW
	if f&vma.Write == 0 {
		flags &^= FlagRW
	}
	if f&vma.User != 0 {
		flags |= FlagUser
	}
	if f&vma.Exec == 0 {
		flags |= FlagNoExecute
	}
	return flags
}
