// Package sync provides the synchronization primitives used throughout the
// kernel. Unlike the standard library's sync package, these primitives are
// safe to use before the Go runtime scheduler is initialized.
package sync

import (
	"sync/atomic"

	"github.com/achilleasa/uniker/kernel/cpu"
)

// Spinlock implements a simple test-and-set lock where a contending task
// busy-waits until the lock becomes available. Re-acquiring a lock already
// held by the current context deadlocks, matching the teacher's semantics.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired.
func (l *Spinlock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		// busy wait; on real hardware this would PAUSE, but any
		// power-saving hint is an arch-level concern out of scope here.
	}
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *Spinlock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock. Calling Release on a free lock has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// IRQSpinlock is a Spinlock that additionally disables/restores local
// interrupts around the critical section, as required by §5 for the PMM,
// heap, and VFS mount-list locks: an IRQ handler must never observe a
// structure mid-update because it preempted the task holding the lock.
type IRQSpinlock struct {
	inner Spinlock
}

// Acquire disables interrupts and acquires the underlying spinlock.
func (l *IRQSpinlock) Acquire() {
	cpu.DisableInterrupts()
	l.inner.Acquire()
}

// Release releases the underlying spinlock and re-enables interrupts.
//
// This is only correct for the non-nested, non-reentrant use the kernel
// makes of IRQSpinlock (acquire/release pairs never cross a yield point);
// a general-purpose nestable version would need to save/restore the prior
// interrupt-enable state instead of unconditionally re-enabling it.
func (l *IRQSpinlock) Release() {
	l.inner.Release()
	cpu.EnableInterrupts()
}
