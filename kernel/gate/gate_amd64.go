// Package gate owns the IDT: the vector table routing CPU exceptions,
// software interrupts and hardware IRQs to Go handlers (spec.md §4.6).
package gate

import (
	"io"

	"github.com/achilleasa/uniker/kernel/kfmt"
)

// Registers is the saved-register snapshot every interrupt entry stub
// builds before calling into Go: general purpose registers, an Info field
// multiplexed as exception vector/error code, syscall number, or IRQ
// number depending on the gate, and the CPU-pushed IRETQ frame.
type Registers struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	Info uint64

	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo writes the register snapshot in the teacher's panic-dump layout.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber identifies an IDT vector.
type InterruptNumber uint8

const (
	// DivideByZero is vector 0.
	DivideByZero = InterruptNumber(0)
	// DebugException is vector 1.
	DebugException = InterruptNumber(1)
	// NMI is vector 2.
	NMI = InterruptNumber(2)
	// InvalidOpcode is vector 6.
	InvalidOpcode = InterruptNumber(6)
	// DeviceNotAvailable is vector 7 (FPU lazily unavailable).
	DeviceNotAvailable = InterruptNumber(7)
	// DoubleFault is vector 8; routed through IST1 to a dedicated stack.
	DoubleFault = InterruptNumber(8)
	// GPFException is vector 13.
	GPFException = InterruptNumber(13)
	// PageFaultException is vector 14.
	PageFaultException = InterruptNumber(14)

	// IRQBase is the vector the PIC's IRQ0 is remapped to.
	IRQBase = InterruptNumber(32)
	// TimerIRQ is IRQ0.
	TimerIRQ = IRQBase + 0
	// KeyboardIRQ is IRQ1.
	KeyboardIRQ = IRQBase + 1
	// MouseIRQ is IRQ12.
	MouseIRQ = IRQBase + 12

	// SyscallVector is the software-interrupt gate used by the syscall ABI.
	SyscallVector = InterruptNumber(0x80)

	// doubleFaultIST selects IST1 for the double-fault gate.
	doubleFaultIST = uint8(1)
)

// Init installs the IDT with every gate initially marked non-present.
func Init() {
	installIDT()
}

// HandleInterrupt registers handler for intNumber. istOffset selects an
// interrupt-stack-table slot (0 disables IST for this gate); only
// DoubleFault uses one, per spec.md §4.6.
func HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler func(*Registers))

// installIDT populates and loads the IDT register.
func installIDT()

// dispatchInterrupt is the landing pad every asm interrupt stub calls into.
func dispatchInterrupt()
