// Package heap implements the kernel's general-purpose dynamic allocator
// (spec.md §4.3): a two-tier allocator behind a single spinlock, bucketed
// power-of-two slabs for small requests and direct multi-frame mappings for
// large ones.
package heap

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/kfmt"
	"github.com/achilleasa/uniker/kernel/sync"
)

// headerMagic tags every live allocation so Free can detect corruption or a
// double free without crashing.
const headerMagic = uint32(0x4845415a) // "HEAZ"

// header precedes every allocation returned to callers.
type header struct {
	size  uintptr
	magic uint32
}

const headerSize = unsafe.Sizeof(header{})

// numBuckets is the count of power-of-two size classes from 16 to 4096.
const numBuckets = 9

// maxSmallPayload is the largest request size serviced through the
// bucketed allocator; anything bigger goes through the large-request path.
const maxSmallPayload = uintptr(4096) - headerSize

// maxTrackedPages bounds the page tracker; once full, newly refilled pages
// are never reclaimed even after all their blocks are freed (spec.md §4.3).
const maxTrackedPages = 512

var allocator Allocator

// Allocator is the kernel heap's singleton state.
type Allocator struct {
	lock sync.IRQSpinlock

	buckets [numBuckets]bucket
	pages   [maxTrackedPages]pageSlot
}

type bucket struct {
	blockSize uintptr
	free      *freeBlock
}

type freeBlock struct {
	next *freeBlock
}

// pageSlot tracks one frame carved into blocks of a single bucket size so
// Free can tell when an entire page has become free again.
type pageSlot struct {
	inUse      bool
	pageVirt   uintptr
	bucket     int
	freeCount  uint32
	totalCount uint32
}

func init() {
	size := uintptr(16)
	for i := 0; i < numBuckets; i++ {
		allocator.buckets[i].blockSize = size
		size <<= 1
	}
}

// Alloc returns a pointer to at least n usable bytes, or 0 on allocation
// failure. Zero-length requests still yield a distinct, freeable pointer.
func Alloc(n uintptr) uintptr { return allocator.alloc(n) }

func (a *Allocator) alloc(n uintptr) uintptr {
	a.lock.Acquire()
	defer a.lock.Release()

	if n <= maxSmallPayload {
		return a.allocSmall(n)
	}
	return a.allocLarge(n)
}

// Free releases a pointer previously returned by Alloc. A bad magic value is
// logged and tolerated, never treated as fatal (spec.md §4.3).
func Free(ptr uintptr) { allocator.free(ptr) }

func (a *Allocator) free(ptr uintptr) {
	if ptr == 0 {
		return
	}

	a.lock.Acquire()
	defer a.lock.Release()

	hdr := headerAt(ptr)
	if hdr.magic != headerMagic {
		kfmt.Printf("[heap] WARN: free() on pointer 0x%16x with bad header magic\n", ptr)
		return
	}

	if hdr.size <= maxSmallPayload {
		a.freeSmall(ptr, hdr)
	} else {
		a.freeLarge(ptr, hdr)
	}
}

func headerAt(payload uintptr) *header {
	return (*header)(unsafe.Pointer(payload - headerSize))
}

var errOutOfMemory = &kernel.Error{Module: "heap", Message: "out of memory"}

// bucketFor returns the index of the smallest bucket able to hold total
// bytes (payload + header), or -1 if total exceeds the largest bucket.
func bucketFor(total uintptr) int {
	size := uintptr(16)
	for i := 0; i < numBuckets; i++ {
		if total <= size {
			return i
		}
		size <<= 1
	}
	return -1
}
