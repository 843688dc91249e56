package kfmt

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/cpu"
)

var (
	// haltFn is substituted by tests and inlined by the compiler otherwise.
	haltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic prints the supplied error (if any) and halts the CPU. Panic never
// returns; it also serves as the target Go's runtime.gopanic/runtime.throw
// are redirected to, since the standard panic/recover machinery is not
// available until the goroutine runtime has been bootstrapped.
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	case nil:
		err = nil
	default:
		errRuntimePanic.Message = "panic with non-error value"
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***\n")
	Printf("-----------------------------------\n")

	for {
		haltFn()
	}
}

// panicString redirects runtime.throw, which always passes a plain string.
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
