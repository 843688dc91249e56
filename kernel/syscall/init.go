package syscall

import (
	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/proc"
)

// Init installs the syscall gate. The bodyless entry stub (see kernel/gate)
// saves the trapped registers into a gate.Registers frame; handleSyscall
// reads {num, arg1, arg2, arg3} from that frame.
func Init() {
	gate.HandleInterrupt(gate.SyscallVector, 0, handleSyscall)
}

// handleSyscall adapts the raw register frame the CPU trap delivers into a
// Dispatch call. The ABI stashes the syscall number in RAX and the first
// three arguments in RDI/RSI/RDX; this convention is this repository's own.
func handleSyscall(frame *gate.Registers) {
	current := proc.Current()
	Dispatch(current, Number(frame.RAX), uintptr(frame.RDI), uintptr(frame.RSI), uintptr(frame.RDX), frame)
}
