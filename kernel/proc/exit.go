package proc

import "github.com/achilleasa/uniker/kernel"

var errNoChildren = &kernel.Error{Module: "proc", Message: "no such child process"}

// Exit transitions p to Zombie, records status, and wakes a waiting parent.
// The address space and VMA list are freed later, at reap time, so the
// parent can still observe the exit status via wait4.
func Exit(p *Process, status int32) {
	lock.Acquire()
	p.State = Zombie
	p.ExitStatus = status

	parent := findByPIDLocked(p.ParentPID)
	if parent != nil && parent.State == Waiting && (parent.WaitForPID == -1 || uint64(parent.WaitForPID) == p.PID) {
		parent.State = Ready
	}
	lock.Release()

	Schedule()
}

// Wait4 blocks the calling process until a child matching pid (-1 for any)
// reaches Zombie, then reaps it and returns its pid and exit status.
func Wait4(caller *Process, pid int64) (uint64, int32, *kernel.Error) {
	for {
		lock.Acquire()
		if zombie := findZombieChildLocked(caller, pid); zombie != nil {
			lock.Release()
			return reap(zombie)
		}
		if !hasChildLocked(caller, pid) {
			lock.Release()
			return 0, 0, errNoChildren
		}
		caller.State = Waiting
		caller.WaitForPID = pid
		lock.Release()

		Schedule()
	}
}

func findZombieChildLocked(caller *Process, pid int64) *Process {
	p := caller.next
	for p != caller {
		if p.ParentPID == caller.PID && p.State == Zombie && (pid == -1 || uint64(pid) == p.PID) {
			return p
		}
		p = p.next
	}
	return nil
}

func hasChildLocked(caller *Process, pid int64) bool {
	p := caller.next
	for p != caller {
		if p.ParentPID == caller.PID && (pid == -1 || uint64(pid) == p.PID) {
			return true
		}
		p = p.next
	}
	return false
}

// reap removes zombie from the ring and frees its address space, VMA list
// and file descriptors.
func reap(zombie *Process) (uint64, int32, *kernel.Error) {
	lock.Acquire()
	p := current
	for p.next != zombie {
		p = p.next
	}
	p.next = zombie.next
	lock.Release()

	vmmFreeAddressSpace(zombie.PML4)
	if zombie.FDTable != nil {
		zombie.FDTable.CloseAll()
	}

	return zombie.PID, zombie.ExitStatus, nil
}
