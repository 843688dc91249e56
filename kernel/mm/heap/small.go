package heap

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
)

func (a *Allocator) allocSmall(n uintptr) uintptr {
	idx := bucketFor(n + headerSize)
	if idx < 0 {
		return 0
	}
	b := &a.buckets[idx]

	if b.free == nil {
		if !a.refill(idx) {
			return 0
		}
	}

	block := b.free
	b.free = block.next
	if slot := a.slotFor(uintptr(unsafe.Pointer(block))); slot != nil {
		slot.freeCount--
	}

	hdr := (*header)(unsafe.Pointer(block))
	hdr.size = n
	hdr.magic = headerMagic
	return uintptr(unsafe.Pointer(block)) + headerSize
}

// refill obtains one frame from PMM, maps it through HHDM, and carves it
// into identically sized blocks for bucket idx, pushing them all onto the
// bucket's free list. If the bounded page tracker is full, the page is
// still carved and linked but is never reclaimed (spec.md §4.3).
func (a *Allocator) refill(idx int) bool {
	frame, err := pmm.AllocFrame()
	if err != nil {
		return false
	}
	pageVirt := boot.PhysToVirt(frame.Address())
	blockSize := a.buckets[idx].blockSize
	total := pmm.PageSize / blockSize

	for i := uintptr(0); i < total; i++ {
		addr := pageVirt + i*blockSize
		fb := (*freeBlock)(unsafe.Pointer(addr))
		fb.next = a.buckets[idx].free
		a.buckets[idx].free = fb
	}

	if slot := a.findFreeSlot(); slot != nil {
		slot.inUse = true
		slot.pageVirt = pageVirt
		slot.bucket = idx
		slot.freeCount = uint32(total)
		slot.totalCount = uint32(total)
	}

	return true
}

func (a *Allocator) findFreeSlot() *pageSlot {
	for i := range a.pages {
		if !a.pages[i].inUse {
			return &a.pages[i]
		}
	}
	return nil
}

func (a *Allocator) slotFor(blockAddr uintptr) *pageSlot {
	pageBase := blockAddr &^ (pmm.PageSize - 1)
	for i := range a.pages {
		if a.pages[i].inUse && a.pages[i].pageVirt == pageBase {
			return &a.pages[i]
		}
	}
	return nil
}

func (a *Allocator) freeSmall(ptr uintptr, hdr *header) {
	blockAddr := ptr - headerSize
	idx := bucketFor(hdr.size + headerSize)
	if idx < 0 {
		return
	}

	fb := (*freeBlock)(unsafe.Pointer(blockAddr))
	fb.next = a.buckets[idx].free
	a.buckets[idx].free = fb

	slot := a.slotFor(blockAddr)
	if slot == nil {
		// Untracked page (tracker was full at refill time): the block
		// stays on the bucket list forever.
		return
	}

	slot.freeCount++
	if slot.freeCount < slot.totalCount {
		return
	}

	// Every block on this page is free again: unlink them all from the
	// bucket list and return the frame to PMM.
	pageEnd := slot.pageVirt + pmm.PageSize

	var head *freeBlock
	var tail *freeBlock
	for n := a.buckets[slot.bucket].free; n != nil; n = n.next {
		addr := uintptr(unsafe.Pointer(n))
		if addr >= slot.pageVirt && addr < pageEnd {
			continue
		}
		if head == nil {
			head = n
		} else {
			tail.next = n
		}
		tail = n
	}
	if tail != nil {
		tail.next = nil
	}
	a.buckets[slot.bucket].free = head

	pmm.FreeFrame(pmm.FromAddress(slot.pageVirt - currentHHDMOffset()))
	*slot = pageSlot{}
}

// currentHHDMOffset is factored out so tests can run with a non-identity
// HHDM mapping, mirroring how pmm and vmm resolve physical addresses.
func currentHHDMOffset() uintptr {
	if h := boot.Current(); h != nil {
		return h.HHDMOffset
	}
	return 0
}
