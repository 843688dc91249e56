// Package proc implements the scheduler and process model: a round-robin
// ring of processes driven by the timer IRQ, fork/exec/exit/sleep/wait4, and
// the context-switch bookkeeping spec.md §4.5 describes. The teacher repo
// stops at memory management and ships no scheduler of its own, so this
// package is grounded on the teacher's ambient idioms (kernel.Error,
// sync.IRQSpinlock, the *Fn injection seam) rather than a
// direct file-for-file port.
package proc

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/cpu"
	"github.com/achilleasa/uniker/kernel/irq"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
	"github.com/achilleasa/uniker/kernel/mm/vma"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
	"github.com/achilleasa/uniker/kernel/sync"
	"github.com/achilleasa/uniker/kernel/vfs"
)

// State is a process's position in spec.md §4.5's state machine.
type State uint8

const (
	Ready State = iota
	Running
	Blocked
	Sleeping
	Waiting
	Zombie
)

// FPUStateSize is the size of the FXSAVE/FXRESTOR save area.
const FPUStateSize = 512

// Context holds the callee-saved registers and rflags preserved across a
// voluntary context switch; the caller-saved set lives on the kernel stack.
type Context struct {
	R15, R14, R13, R12, RBP, RBX, RFlags, RIP uint64
}

// Process is one schedulable unit of execution: a kernel-mode context with
// an optional ring-3 address space.
type Process struct {
	PID       uint64
	ParentPID uint64
	Name      string

	State      State
	ExitStatus int32

	SP         uintptr
	StackBase  uintptr
	PML4       uintptr
	ctx        Context
	fpuState   [FPUStateSize]byte
	fpuInit    bool

	VMAs    *vma.List
	FDTable *vfs.FDTable
	Cwd     string

	WaitForPID int64
	WakeTime   uint64

	ExecDone       bool
	ExecExitStatus int32

	next *Process
}

var (
	lock    sync.IRQSpinlock
	current *Process
	idle    *Process
	nextPID uint64
)

// Init creates the idle process and wires the scheduler into the timer IRQ
// and the VMM's page-fault context resolver, mirroring the teacher's
// SetFrameAllocator-style injection to avoid an import cycle.
func Init() {
	idle = &Process{PID: 0, Name: "idle", State: Ready, PML4: vmm.KernelPML4(), Cwd: "/"}
	idle.next = idle
	current = idle
	nextPID = 1

	irq.SetScheduler(Schedule)
	vmm.SetContextResolver(func() *vmm.AddressSpaceContext {
		c := Current()
		if c == nil || c.VMAs == nil {
			return nil
		}
		return &vmm.AddressSpaceContext{PML4: c.PML4, VMAs: c.VMAs}
	})
}

// Current returns the running process.
func Current() *Process {
	lock.Acquire()
	defer lock.Release()
	return current
}

// allocPID hands out the next process id.
func allocPID() uint64 {
	id := nextPID
	nextPID++
	return id
}

// enqueue links p into the ring right after current.
func enqueue(p *Process) {
	lock.Acquire()
	defer lock.Release()
	p.next = current.next
	current.next = p
}

// Schedule is invoked from the timer IRQ (and voluntarily via Yield): it
// walks the ring starting after current until it finds a Ready process,
// falling back to idle if nothing else is runnable.
func Schedule() {
	lock.Acquire()
	prev := current
	if prev.State == Running {
		prev.State = Ready
	}

	wakeSleepersLocked()

	next := prev.next
	for next != prev {
		if next.State == Ready {
			break
		}
		next = next.next
	}
	if next.State != Ready {
		next = idle
	}
	next.State = Running
	current = next
	lock.Release()

	if next != prev {
		switchContext(prev, next)
	}
}

// wakeSleepersLocked promotes any Sleeping process whose wake_time has
// passed back to Ready. Called with lock held.
func wakeSleepersLocked() {
	now := ticksFn()
	p := current
	for {
		if p.State == Sleeping && now >= p.WakeTime {
			p.State = Ready
		}
		p = p.next
		if p == current {
			break
		}
	}
}

// Yield gives up the remainder of the current time slice.
func Yield() { Schedule() }

// switchContextFn is mocked by tests so they never execute the real
// assembly stub.
var switchContextFn = cpu.SwitchContext
var fxSaveFn = cpu.FxSave
var fxRestoreFn = cpu.FxRestore
var switchPDTFn = cpu.SwitchPDT

// vmmFreeAddressSpace is a seam over vmm.FreeAddressSpace so reap can be
// unit tested without tearing down real page tables.
var vmmFreeAddressSpace = vmm.FreeAddressSpace

func switchContext(prev, next *Process) {
	fxSaveFn(uintptr(unsafe.Pointer(&prev.fpuState[0])))
	prev.fpuInit = true

	if next.fpuInit {
		fxRestoreFn(uintptr(unsafe.Pointer(&next.fpuState[0])))
	}

	if next.PML4 != prev.PML4 {
		switchPDTFn(next.PML4)
	}

	switchContextFn(&prev.SP, next.SP)
}

var errNoSuchProcess = &kernel.Error{Module: "proc", Message: "no such process"}

// findByPIDLocked walks the ring for pid; lock must be held by the caller.
func findByPIDLocked(pid uint64) *Process {
	p := current
	for {
		if p.PID == pid {
			return p
		}
		p = p.next
		if p == current {
			return nil
		}
	}
}

// FindByPID returns the process with the given pid, or nil.
func FindByPID(pid uint64) *Process {
	lock.Acquire()
	defer lock.Release()
	return findByPIDLocked(pid)
}

// PageSize re-exports pmm's page size for callers building stack/segment math.
const PageSize = pmm.PageSize
