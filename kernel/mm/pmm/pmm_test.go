package pmm

import (
	"testing"
	"unsafe"

	"github.com/achilleasa/uniker/kernel/hal/boot"
)

// fakeHandoff backs a small synthetic physical address space with a real Go
// slice so the allocator's HHDM writes land somewhere valid, mirroring the
// teacher's approach of backing "physical memory" with a host []byte in
// bitmap_allocator_test.go.
func fakeHandoff(frames uint64) (*boot.Handoff, []byte) {
	backing := make([]byte, frames*uint64(PageSize))
	h := &boot.Handoff{
		HHDMOffset: uintptr(unsafe.Pointer(&backing[0])),
		MemoryMap: []boot.MemoryMapEntry{
			{Base: 0, Length: frames * uint64(PageSize), Type: boot.MemUsable},
		},
	}
	return h, backing
}

func resetAllocator() { allocator = Allocator{} }

func TestInitReservesStorageAndComputesFreeCount(t *testing.T) {
	resetAllocator()
	h, _ := fakeHandoff(64)
	boot.SetHandoff(h)

	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if allocator.totalFrames != 64 {
		t.Fatalf("expected 64 total frames, got %d", allocator.totalFrames)
	}
	// one page's worth of frames is reserved for the bitmap+refcount storage itself
	if allocator.freeFrames == allocator.totalFrames {
		t.Fatalf("expected some frames reserved for allocator bookkeeping")
	}
}

func TestAllocFreeInvariant(t *testing.T) {
	resetAllocator()
	h, _ := fakeHandoff(64)
	boot.SetHandoff(h)
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	freeBefore := allocator.freeFrames

	f, err := AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if !f.Valid() {
		t.Fatalf("expected valid frame")
	}
	if Refcount(f) != 1 {
		t.Fatalf("expected refcount 1, got %d", Refcount(f))
	}
	if allocator.freeFrames != freeBefore-1 {
		t.Fatalf("expected free count to drop by 1")
	}

	FreeFrame(f)
	if Refcount(f) != 0 {
		t.Fatalf("expected refcount 0 after free, got %d", Refcount(f))
	}
	if allocator.freeFrames != freeBefore {
		t.Fatalf("expected free count restored")
	}
}

func TestRefcountShareAndDoubleFreeIsNoop(t *testing.T) {
	resetAllocator()
	h, _ := fakeHandoff(64)
	boot.SetHandoff(h)
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	f, _ := AllocFrame()
	RefcountInc(f)
	if Refcount(f) != 2 {
		t.Fatalf("expected refcount 2, got %d", Refcount(f))
	}

	FreeFrame(f)
	if Refcount(f) != 1 {
		t.Fatalf("expected refcount 1 after one dec, got %d", Refcount(f))
	}

	FreeFrame(f)
	if Refcount(f) != 0 {
		t.Fatalf("expected refcount 0, got %d", Refcount(f))
	}

	// double free is a tolerated no-op, not a crash.
	FreeFrame(f)
	if Refcount(f) != 0 {
		t.Fatalf("expected refcount to remain 0 after double free")
	}
}

func TestAllocFramesContiguous(t *testing.T) {
	resetAllocator()
	h, _ := fakeHandoff(64)
	boot.SetHandoff(h)
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	base, err := AllocFrames(4)
	if err != nil {
		t.Fatalf("AllocFrames: %v", err)
	}
	for i := uint64(0); i < 4; i++ {
		if Refcount(base+Frame(i)) != 1 {
			t.Fatalf("expected contiguous frame %d to be allocated", i)
		}
	}
}

func TestAllocFrameOutOfMemory(t *testing.T) {
	resetAllocator()
	h, _ := fakeHandoff(2)
	boot.SetHandoff(h)
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for {
		if _, err := AllocFrame(); err != nil {
			return
		}
	}
}
