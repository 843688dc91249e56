package irq

import (
	"testing"

	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
)

func resetHooks() {
	readCR2Fn = func() uint64 { return 0 }
	inPort8Fn = func(uint16) uint8 { return 0 }
	ackIRQFn = func(uint8) {}
	remapPICFn = func() {}
	panicFn = func(interface{}) {}
	handlePageFaultFn = vmm.HandlePageFault
	scheduleFn = nil
	ticks = 0
	instructionBytesFn = func(uintptr) []byte { return []byte{0x90} } // nop
}

func TestTimerHandlerTicksAndSchedules(t *testing.T) {
	resetHooks()
	called := false
	SetScheduler(func() { called = true })

	timerHandler(&gate.Registers{})

	if Ticks() != 1 {
		t.Fatalf("expected 1 tick, got %d", Ticks())
	}
	if !called {
		t.Fatalf("expected scheduler to be invoked on timer IRQ")
	}
}

func TestPageFaultHandlerRecovers(t *testing.T) {
	resetHooks()
	readCR2Fn = func() uint64 { return 0x2000 }
	handlePageFaultFn = func(addr uintptr, errCode vmm.FaultErrorCode) bool { return true }

	panicked := false
	panicFn = func(interface{}) { panicked = true }

	pageFaultHandler(&gate.Registers{Info: 0})

	if panicked {
		t.Fatalf("expected a recoverable fault to not panic")
	}
}

func TestPageFaultHandlerPanicsWhenUnrecoverable(t *testing.T) {
	resetHooks()
	readCR2Fn = func() uint64 { return 0x9000 }
	handlePageFaultFn = func(addr uintptr, errCode vmm.FaultErrorCode) bool { return false }

	panicked := false
	panicFn = func(interface{}) { panicked = true }

	pageFaultHandler(&gate.Registers{Info: 0})

	if !panicked {
		t.Fatalf("expected unrecoverable fault to panic")
	}
}

func TestKeyboardHandlerDispatchesScancode(t *testing.T) {
	resetHooks()
	inPort8Fn = func(uint16) uint8 { return 0x1e }

	var got uint8
	SetKeyboardHandler(func(sc uint8) { got = sc })

	keyboardHandler(&gate.Registers{})

	if got != 0x1e {
		t.Fatalf("expected scancode 0x1e, got 0x%x", got)
	}
}
