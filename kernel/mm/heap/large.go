package heap

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
)

func (a *Allocator) allocLarge(n uintptr) uintptr {
	total := n + headerSize
	pages := (total + pmm.PageSize - 1) / pmm.PageSize

	base, err := pmm.AllocFrames(uint64(pages))
	if err != nil {
		return 0
	}

	virt := boot.PhysToVirt(base.Address())
	hdr := (*header)(unsafe.Pointer(virt))
	hdr.size = n
	hdr.magic = headerMagic
	return virt + headerSize
}

func (a *Allocator) freeLarge(ptr uintptr, hdr *header) {
	virt := ptr - headerSize
	total := hdr.size + headerSize
	pages := (total + pmm.PageSize - 1) / pmm.PageSize

	phys := virt - currentHHDMOffset()
	base := pmm.FromAddress(phys)
	for i := uintptr(0); i < pages; i++ {
		pmm.FreeFrame(base + pmm.Frame(i))
	}
}
