// Package irq wires the IDT gates installed by kernel/gate to the kernel's
// actual exception and interrupt policy: page faults consult the VMM,
// unhandled exceptions panic with a register dump, and the timer IRQ drives
// the scheduler (spec.md §4.6).
package irq

import (
	"github.com/achilleasa/uniker/kernel/cpu"
	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/kfmt"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
)

// panicFn is mocked by tests; the real value is kfmt.Panic wired during Init.
var panicFn = func(e interface{}) { kfmt.Printf("panic: %v\n", e) }

// The following indirections let tests exercise handler logic without
// touching real hardware, the same seam the teacher uses for activePDTFn.
var (
	readCR2Fn  = cpu.ReadCR2
	inPort8Fn  = cpu.InPort8
	ackIRQFn   = ackIRQ
	remapPICFn = remapPIC

	// handlePageFaultFn is swapped out in tests so the IRQ-level policy
	// (panic vs. resume) can be verified without exercising the real
	// page-table code, which needs live hardware hooks of its own.
	handlePageFaultFn = vmm.HandlePageFault
)

// scheduleFn is registered by the scheduler at init so this package never
// has to import proc (proc already imports irq to install the timer hook).
var scheduleFn func()

// ticks counts timer interrupts since boot.
var ticks uint64

// SetScheduler registers the function invoked on every timer tick.
func SetScheduler(fn func()) { scheduleFn = fn }

// Ticks returns the number of timer interrupts observed since boot.
func Ticks() uint64 { return ticks }

// Init installs the exception and IRQ handlers and reprograms the PIC.
func Init() {
	panicFn = kfmt.Panic
	remapPICFn()

	gate.HandleInterrupt(gate.PageFaultException, 0, pageFaultHandler)
	gate.HandleInterrupt(gate.GPFException, 0, generalProtectionFaultHandler)
	gate.HandleInterrupt(gate.DoubleFault, 1, doubleFaultHandler)
	gate.HandleInterrupt(gate.TimerIRQ, 0, timerHandler)
	gate.HandleInterrupt(gate.KeyboardIRQ, 0, keyboardHandler)
	gate.HandleInterrupt(gate.MouseIRQ, 0, mouseHandler)

	cpu.EnableInterrupts()
}

// RegisterIRQHandler installs handler for the given PIC-relative IRQ line
// (0-15). Used by device drivers discovered at runtime; spec.md §4.6 notes
// the xHCI driver registers one such line when present.
func RegisterIRQHandler(line uint8, handler func(*gate.Registers)) {
	gate.HandleInterrupt(gate.IRQBase+gate.InterruptNumber(line), 0, func(r *gate.Registers) {
		handler(r)
		ackIRQFn(line)
	})
}

func pageFaultHandler(regs *gate.Registers) {
	faultAddr := uintptr(readCR2Fn())
	if handlePageFaultFn(faultAddr, vmm.FaultErrorCode(regs.Info)) {
		return
	}
	kfmt.Printf("\nPage fault while accessing address: %p\nReason: ", faultAddr)
	dumpPageFaultReason(regs.Info)
	kfmt.Printf("\n\nRegisters:\n")
	regs.DumpTo(kfmt.GetSink())
	kfmt.Printf("Faulting instruction: %s\n", disassembleFaultingInstruction(uintptr(regs.RIP)))
	panicFn(nil)
}

func dumpPageFaultReason(errCode uint64) {
	switch {
	case errCode&1 == 0:
		kfmt.Printf("read/write to non-present page")
	case errCode&2 != 0:
		kfmt.Printf("page protection violation (write)")
	default:
		kfmt.Printf("page protection violation (read)")
	}
	if errCode&4 != 0 {
		kfmt.Printf(", user mode")
	}
}

func generalProtectionFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nGeneral protection fault, error code 0x%x\n", regs.Info)
	regs.DumpTo(kfmt.GetSink())
	kfmt.Printf("Faulting instruction: %s\n", disassembleFaultingInstruction(uintptr(regs.RIP)))
	panicFn(nil)
}

func doubleFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nDouble fault\n")
	regs.DumpTo(kfmt.GetSink())
	kfmt.Printf("Faulting instruction: %s\n", disassembleFaultingInstruction(uintptr(regs.RIP)))
	panicFn(nil)
}

func timerHandler(_ *gate.Registers) {
	ticks++
	ackIRQFn(0)
	if scheduleFn != nil {
		scheduleFn()
	}
}

// keyboardHandlerFn and mouseHandlerFn let a PS/2 driver (out of scope for
// the core) plug in without this package depending on it.
var (
	keyboardHandlerFn func(scancode uint8)
	mouseHandlerFn    func(packet byte)
)

// SetKeyboardHandler registers the scancode consumer for IRQ1.
func SetKeyboardHandler(fn func(scancode uint8)) { keyboardHandlerFn = fn }

// SetMouseHandler registers the packet-byte consumer for IRQ12.
func SetMouseHandler(fn func(packet byte)) { mouseHandlerFn = fn }

func keyboardHandler(_ *gate.Registers) {
	scancode := inPort8Fn(0x60)
	ackIRQFn(1)
	if keyboardHandlerFn != nil {
		keyboardHandlerFn(scancode)
	}
}

func mouseHandler(_ *gate.Registers) {
	data := inPort8Fn(0x60)
	ackIRQFn(12)
	if mouseHandlerFn != nil {
		mouseHandlerFn(data)
	}
}
