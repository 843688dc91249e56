// Package vmm implements the virtual-memory manager of spec.md §4.2: a
// 4-level amd64 page-table walker addressed entirely through the
// bootloader's higher-half direct map, plus address-space creation/cloning,
// MMIO/DMA mapping and the copy-on-write/demand-fill page-fault policy.
package vmm

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/cpu"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
)

// Init records the PML4 the bootloader left active as the kernel's shared
// top-half page tables and installs the default frame allocator. It must
// run after pmm.Init and before any call to CreateAddressSpace.
func Init() *kernel.Error {
	kernelPML4 = cpu.ActivePDT()
	SetFrameAllocator(pmm.AllocFrame)
	return nil
}

// KernelPML4 returns the physical address of the shared kernel address space.
func KernelPML4() uintptr { return kernelPML4 }
