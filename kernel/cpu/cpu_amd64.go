// Package cpu declares the architecture-specific primitives that the rest of
// the kernel relies on. They are declared without Go bodies; the amd64
// assembly implementing them is not part of this repository (see spec.md §1,
// "bit-level CPU bringup... specified only by the contract they establish"),
// so this package does not build on its own.
package cpu

// EnableInterrupts enables interrupt handling (STI).
func EnableInterrupts()

// DisableInterrupts disables interrupt handling (CLI).
func DisableInterrupts()

// Halt stops instruction execution (HLT) until the next interrupt.
func Halt()

// FlushTLBEntry flushes the TLB entry for a particular virtual address (INVLPG).
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to the given physical
// address and flushes the TLB (writes CR3).
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table (reads CR3).
func ActivePDT() uintptr

// ReadCR2 returns the faulting address recorded by the last page fault.
func ReadCR2() uint64

// ReadRFlags returns the current value of the RFLAGS register.
func ReadRFlags() uint64

// FxSave writes the current x87/SSE state into the 512-byte, 16-byte aligned
// buffer pointed to by addr.
func FxSave(addr uintptr)

// FxRestore loads the x87/SSE state from the 512-byte, 16-byte aligned
// buffer pointed to by addr.
func FxRestore(addr uintptr)

// SwitchContext saves the callee-saved registers and stack pointer of the
// outgoing context into *prevSP, loads them from newSP and resumes execution
// at the saved return address of the incoming context.
func SwitchContext(prevSP *uintptr, newSP uintptr)

// EnterUserMode performs the iretq transition into ring 3 at the given entry
// point, using the given user stack pointer.
func EnterUserMode(entry, userStack uintptr)

// InPort8 reads a byte from the given I/O port.
func InPort8(port uint16) uint8

// OutPort8 writes a byte to the given I/O port.
func OutPort8(port uint16, value uint8)
