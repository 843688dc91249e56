package heap

import (
	"testing"
	"unsafe"

	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
)

func setup(t *testing.T, frames uint64) {
	t.Helper()
	backing := make([]byte, frames*uint64(pmm.PageSize))
	h := &boot.Handoff{
		HHDMOffset: uintptr(unsafe.Pointer(&backing[0])),
		MemoryMap: []boot.MemoryMapEntry{
			{Base: 0, Length: frames * uint64(pmm.PageSize), Type: boot.MemUsable},
		},
	}
	boot.SetHandoff(h)
	if err := pmm.Init(); err != nil {
		t.Fatalf("pmm.Init: %v", err)
	}

	allocator = Allocator{}
	size := uintptr(16)
	for i := 0; i < numBuckets; i++ {
		allocator.buckets[i].blockSize = size
		size <<= 1
	}
}

func TestSmallAllocFreeRoundTrip(t *testing.T) {
	setup(t, 16)

	ptr := Alloc(24)
	if ptr == 0 {
		t.Fatalf("Alloc failed")
	}
	buf := (*[24]byte)(unsafe.Pointer(ptr))
	for i := range buf {
		buf[i] = byte(i)
	}
	for i := range buf {
		if buf[i] != byte(i) {
			t.Fatalf("data corruption at %d", i)
		}
	}
	Free(ptr)
}

func TestSmallAllocReclaimsFullyFreedPage(t *testing.T) {
	setup(t, 16)

	freeBefore := pmm.FreeMemory()

	const payload = 8
	idx := bucketFor(payload + headerSize)
	blockSize := allocator.buckets[idx].blockSize
	count := int(pmm.PageSize / blockSize)
	ptrs := make([]uintptr, count)
	for i := 0; i < count; i++ {
		ptrs[i] = Alloc(payload)
		if ptrs[i] == 0 {
			t.Fatalf("Alloc %d failed", i)
		}
	}

	if pmm.FreeMemory() == freeBefore {
		t.Fatalf("expected a frame to have been consumed by refill")
	}

	for _, p := range ptrs {
		Free(p)
	}

	if pmm.FreeMemory() != freeBefore {
		t.Fatalf("expected frame to be returned to pmm once the page was fully freed, free=%d want=%d", pmm.FreeMemory(), freeBefore)
	}
}

func TestLargeAllocFree(t *testing.T) {
	setup(t, 16)

	freeBefore := pmm.FreeMemory()
	ptr := Alloc(10000)
	if ptr == 0 {
		t.Fatalf("Alloc failed")
	}
	if pmm.FreeMemory() == freeBefore {
		t.Fatalf("expected large alloc to consume frames")
	}

	Free(ptr)
	if pmm.FreeMemory() != freeBefore {
		t.Fatalf("expected large free to return frames, got free=%d want=%d", pmm.FreeMemory(), freeBefore)
	}
}

func TestFreeBadMagicIsTolerated(t *testing.T) {
	setup(t, 16)

	ptr := Alloc(8)
	hdr := headerAt(ptr)
	hdr.magic = 0xdeadbeef

	// Must not panic.
	Free(ptr)
}

func TestAlignedAlloc(t *testing.T) {
	setup(t, 16)

	ptr := AlignedAlloc(64, 100)
	if ptr == 0 {
		t.Fatalf("AlignedAlloc failed")
	}
	if ptr%64 != 0 {
		t.Fatalf("expected 64-byte alignment, got 0x%x", ptr)
	}
	AlignedFree(ptr)
}
