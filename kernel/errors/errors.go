// Package errors defines the handful of sentinel errors that do not need a
// module-specific kernel.Error and can therefore be shared as plain string
// constants, mirroring the teacher's zero-allocation error strategy.
package errors

// KernelError is a trivial error implementation that does not require a
// memory allocation, used as an alternative to errors.New in code paths
// that run before the heap is available.
type KernelError string

// Error implements the error interface.
func (e KernelError) Error() string { return string(e) }

var (
	// ErrInvalidParamValue indicates that a caller supplied a parameter
	// outside its accepted range or domain.
	ErrInvalidParamValue = KernelError("invalid parameter value")

	// ErrNotSupported indicates an operation a driver does not implement.
	// The vfs package reports vnode operations a driver left unbound with
	// its own kernel.Error value, not this one.
	ErrNotSupported = KernelError("operation not supported")

	// ErrOutOfMemory indicates that no frame or heap block can satisfy a
	// request. pmm reports exhaustion with its own kernel.Error value.
	ErrOutOfMemory = KernelError("out of memory")

	// ErrNotFound indicates a lookup failure (path component, pid, fd, pipe).
	ErrNotFound = KernelError("not found")

	// ErrExists indicates a creation request collided with an existing entry.
	ErrExists = KernelError("already exists")

	// ErrInvalidFD indicates an out-of-range or unused file descriptor.
	ErrInvalidFD = KernelError("invalid file descriptor")

	// ErrNotDir indicates a path component expected to be a directory was not.
	ErrNotDir = KernelError("not a directory")

	// ErrIsDir indicates an operation disallowed on directories (e.g. write).
	ErrIsDir = KernelError("is a directory")
)
