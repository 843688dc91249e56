package irq

import "testing"

func TestDisassembleFaultingInstructionDecodesNop(t *testing.T) {
	instructionBytesFn = func(uintptr) []byte { return []byte{0x90} }

	got := disassembleFaultingInstruction(0x1000)
	if got != "nop" {
		t.Fatalf("expected a decoded nop, got %q", got)
	}
}

func TestDisassembleFaultingInstructionHandlesGarbageBytes(t *testing.T) {
	instructionBytesFn = func(uintptr) []byte { return []byte{} }

	got := disassembleFaultingInstruction(0x1000)
	if got != "<undecodable instruction>" {
		t.Fatalf("expected the undecodable placeholder, got %q", got)
	}
}
