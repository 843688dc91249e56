// Package kernel contains the types and primitives shared by every kernel
// subsystem: the allocation-free Error type and memory-copy helpers used
// before the Go runtime allocator is available. The panic entrypoint lives
// in kernel/kfmt.
package kernel

// Error describes a kernel error. All kernel errors are defined as package
// level variables that are pointers to this structure. This requirement
// stems from the fact that the Go allocator is not available to us during
// early boot, so we cannot rely on errors.New to build error values on the
// fly.
type Error struct {
	// Module is the subsystem that generated the error (e.g. "pmm", "vmm").
	Module string

	// Message is a short, human readable description of the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Module + ": " + e.Message
}
