package irq

import (
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// maxInsnLen is the longest an x86_64 instruction can legally encode to.
const maxInsnLen = 15

// instructionBytesFn reads the raw bytes at a faulting rip; substituted in
// tests with a canned instruction instead of a live pointer, the same seam
// pattern as readCR2Fn.
var instructionBytesFn = func(rip uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(rip)), maxInsnLen)
}

// disassembleFaultingInstruction decodes the instruction at rip for the
// panic dump (spec.md §7 tier 1: "a short disassembly of the faulting
// instruction"). Decoding is pure computation over a byte slice, so it is
// safe to call from a fault handler with no heap allocation or OS calls.
func disassembleFaultingInstruction(rip uintptr) string {
	data := instructionBytesFn(rip)
	inst, err := x86asm.Decode(data, 64)
	if err != nil {
		return "<undecodable instruction>"
	}
	return x86asm.GNUSyntax(inst, uint64(rip), nil)
}
