package pmm

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/kfmt"
	"github.com/achilleasa/uniker/kernel/sync"
)

var (
	errOutOfMemory  = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errBitmapBootFail = &kernel.Error{Module: "pmm", Message: "no usable region large enough for the frame bitmap"}
)

// allocator is the package-level singleton; spec.md §4.1 specifies a single
// global, interrupt-safe spinlock-serialized allocator, not an injectable
// instance.
var allocator Allocator

// Allocator implements the reference-counted physical frame allocator of
// spec.md §4.1. Every frame in [0, totalFrames) is tracked by one bit in
// presentBitmap (1 = allocated) and one uint16 in refcount, maintaining the
// invariant refcount[f] > 0 <=> bit f is set.
type Allocator struct {
	lock sync.IRQSpinlock

	presentBitmap []uint64
	refcount      []uint16

	totalFrames uint64
	freeFrames  uint64

	// hint is the lowest frame index that might be free; it never lags
	// behind reality in a way that strands a freed frame (dec resets it
	// whenever it frees something below the current hint).
	hint uint64
}

// Init scans the boot handoff's memory map, builds the presence bitmap and
// refcount table out of the first sufficiently large usable region, and
// marks every non-usable region (plus the kernel image and boot modules) as
// permanently allocated.
func Init() *kernel.Error {
	return allocator.init()
}

func (a *Allocator) init() *kernel.Error {
	var highestPhys uint64
	boot.VisitMemRegions(func(e *boot.MemoryMapEntry) bool {
		if end := e.Base + e.Length; end > highestPhys {
			highestPhys = end
		}
		return true
	})

	a.totalFrames = (highestPhys + uint64(PageSize) - 1) / uint64(PageSize)
	bitmapWords := (a.totalFrames + 63) / 64
	bitmapBytes := bitmapWords * 8
	refcountBytes := a.totalFrames * 2
	requiredBytes := bitmapBytes + refcountBytes
	requiredPages := (requiredBytes + uint64(PageSize) - 1) / uint64(PageSize)

	storageBase, err := a.carveBootStorage(requiredPages)
	if err != nil {
		return err
	}

	bitmapAddr := boot.PhysToVirt(storageBase.Address())
	refcountAddr := bitmapAddr + uintptr(bitmapBytes)

	a.presentBitmap = unsafeUint64Slice(bitmapAddr, int(bitmapWords))
	a.refcount = unsafeUint16Slice(refcountAddr, int(a.totalFrames))

	// Start out fully reserved; usable regions are carved open below.
	for i := range a.presentBitmap {
		a.presentBitmap[i] = ^uint64(0)
	}

	boot.VisitMemRegions(func(e *boot.MemoryMapEntry) bool {
		if e.Type != boot.MemUsable {
			return true
		}
		startFrame := FromAddress(uintptr((e.Base + uint64(PageSize) - 1) &^ (uint64(PageSize) - 1)))
		endFrame := FromAddress(uintptr((e.Base + e.Length) &^ (uint64(PageSize) - 1)))
		for f := startFrame; f < endFrame; f++ {
			a.clearBit(f)
			a.refcount[f] = 0
			a.freeFrames++
		}
		return true
	})

	// Re-reserve the kernel image and the bitmap/refcount storage itself.
	a.reserveRange(FromAddress(storageBase.Address()), requiredPages)
	if h := boot.Current(); h != nil && h.KernelSize > 0 {
		kernelPages := (uint64(h.KernelSize) + uint64(PageSize) - 1) / uint64(PageSize)
		a.reserveRange(FromAddress(h.KernelPhysBase), kernelPages)
	}

	kfmt.Printf("[pmm] %d frames total, %d free (%d MiB)\n", a.totalFrames, a.freeFrames, (a.freeFrames*uint64(PageSize))/(1024*1024))
	return nil
}

// carveBootStorage performs a one-time bump allocation of `pages` contiguous
// frames out of the first usable region large enough to hold them. This is
// the only allocation performed before the bitmap itself exists, so it
// cannot go through AllocFrames.
func (a *Allocator) carveBootStorage(pages uint64) (Frame, *kernel.Error) {
	var found Frame
	var ok bool
	boot.VisitMemRegions(func(e *boot.MemoryMapEntry) bool {
		if e.Type != boot.MemUsable {
			return true
		}
		startFrame := FromAddress(uintptr((e.Base + uint64(PageSize) - 1) &^ (uint64(PageSize) - 1)))
		regionFrames := e.Length / uint64(PageSize)
		if regionFrames < pages {
			return true
		}
		found, ok = startFrame, true
		return false
	})
	if !ok {
		return InvalidFrame, errBitmapBootFail
	}
	return found, nil
}

func (a *Allocator) reserveRange(start Frame, pages uint64) {
	for i := uint64(0); i < pages; i++ {
		f := start + Frame(i)
		if !a.testBit(f) {
			a.setBit(f)
			a.refcount[f] = 1
			a.freeFrames--
		}
	}
}

// AllocFrame returns the lowest-index free frame, or InvalidFrame if none
// remain.
func AllocFrame() (Frame, *kernel.Error) { return allocator.AllocFrame() }

// AllocFrame is the method form of the package-level AllocFrame.
func (a *Allocator) AllocFrame() (Frame, *kernel.Error) {
	a.lock.Acquire()
	defer a.lock.Release()

	for i := a.hint; i < a.totalFrames; i++ {
		f := Frame(i)
		if !a.testBit(f) {
			a.setBit(f)
			a.refcount[f] = 1
			a.freeFrames--
			a.hint = i + 1
			return f, nil
		}
	}
	return InvalidFrame, errOutOfMemory
}

// AllocFrames reserves a contiguous run of n frames and returns the base
// frame, or InvalidFrame if no sufficiently large free run exists.
func AllocFrames(n uint64) (Frame, *kernel.Error) { return allocator.AllocFrames(n) }

func (a *Allocator) AllocFrames(n uint64) (Frame, *kernel.Error) {
	if n == 0 {
		return InvalidFrame, errOutOfMemory
	}

	a.lock.Acquire()
	defer a.lock.Release()

	var runStart uint64
	var runLen uint64
	for i := uint64(0); i < a.totalFrames; i++ {
		if !a.testBit(Frame(i)) {
			if runLen == 0 {
				runStart = i
			}
			runLen++
			if runLen == n {
				for j := uint64(0); j < n; j++ {
					f := Frame(runStart + j)
					a.setBit(f)
					a.refcount[f] = 1
				}
				a.freeFrames -= n
				if runStart == a.hint {
					a.hint = runStart + n
				}
				return Frame(runStart), nil
			}
		} else {
			runLen = 0
		}
	}
	return InvalidFrame, errOutOfMemory
}

// RefcountInc increments the reference count of an already-allocated frame,
// used when a COW mapping gains another sharer.
func RefcountInc(f Frame) { allocator.RefcountInc(f) }

func (a *Allocator) RefcountInc(f Frame) {
	a.lock.Acquire()
	defer a.lock.Release()
	if a.refcount[f] > 0 {
		a.refcount[f]++
	}
}

// RefcountDec decrements the reference count, freeing the frame once it
// reaches zero. Decrementing a frame that is already free is a tolerated,
// logged no-op (spec.md §4.1 failure model).
func RefcountDec(f Frame) { allocator.RefcountDec(f) }

func (a *Allocator) RefcountDec(f Frame) {
	a.lock.Acquire()
	defer a.lock.Release()
	a.decLocked(f)
}

func (a *Allocator) decLocked(f Frame) {
	if a.refcount[f] == 0 {
		kfmt.Printf("[pmm] WARN: refcount_dec on already-free frame %d\n", uint64(f))
		return
	}
	a.refcount[f]--
	if a.refcount[f] == 0 {
		a.clearBit(f)
		a.freeFrames++
		if uint64(f) < a.hint {
			a.hint = uint64(f)
		}
	}
}

// Refcount returns the current reference count of a frame (test/diagnostic use).
func Refcount(f Frame) uint16 { return allocator.refcount[f] }

// FreeFrame is equivalent to RefcountDec (spec.md §4.1).
func FreeFrame(f Frame) { RefcountDec(f) }

// FreeMemory returns the number of bytes currently free.
func FreeMemory() uint64 { return allocator.freeFrames * uint64(PageSize) }

// TotalMemory returns the total number of tracked bytes.
func TotalMemory() uint64 { return allocator.totalFrames * uint64(PageSize) }

func (a *Allocator) testBit(f Frame) bool {
	return a.presentBitmap[uint64(f)/64]&(1<<(uint64(f)%64)) != 0
}

func (a *Allocator) setBit(f Frame) {
	a.presentBitmap[uint64(f)/64] |= 1 << (uint64(f) % 64)
}

func (a *Allocator) clearBit(f Frame) {
	a.presentBitmap[uint64(f)/64] &^= 1 << (uint64(f) % 64)
}
