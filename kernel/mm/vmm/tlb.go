package vmm

import "github.com/achilleasa/uniker/kernel/cpu"

// The following indirections exist so tests can stub out the hardware
// instructions that would otherwise fault outside ring 0.
var (
	activePDTFn = cpu.ActivePDT
	switchPDTFn = cpu.SwitchPDT
)

func flushTLBEntry(virtAddr uintptr) { cpu.FlushTLBEntry(virtAddr) }
