package vmm

import "github.com/achilleasa/uniker/kernel/mm/pmm"

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address this page index corresponds to.
func (p Page) Address() uintptr { return uintptr(p) << pmm.PageShift }

// PageFromAddress returns the Page containing virtAddr, rounding down if it
// is not page-aligned.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr &^ (pmm.PageSize - 1)) >> pmm.PageShift)
}
