package proc

import (
	"testing"
	"unsafe"

	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
	"github.com/achilleasa/uniker/kernel/mm/vma"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
	"github.com/achilleasa/uniker/kernel/sync"
	"github.com/achilleasa/uniker/kernel/vfs"
)

// setupFakePhysMemory mirrors vmm's own test helper: a real Go slice stands
// in for physical RAM so CreateAddressSpace/CloneAddressSpace/FreeAddressSpace
// run their real frame-accounting logic without live hardware.
func setupFakePhysMemory(t *testing.T, frames uint64) {
	t.Helper()
	backing := make([]byte, frames*uint64(pmm.PageSize))
	h := &boot.Handoff{
		HHDMOffset: uintptr(unsafe.Pointer(&backing[0])),
		MemoryMap: []boot.MemoryMapEntry{
			{Base: 0, Length: frames * uint64(pmm.PageSize), Type: boot.MemUsable},
		},
	}
	boot.SetHandoff(h)
	if err := pmm.Init(); err != nil {
		t.Fatalf("pmm.Init: %v", err)
	}
	vmm.SetFrameAllocator(pmm.AllocFrame)
}

func resetScheduler() {
	lock = sync.IRQSpinlock{}
	idle = &Process{PID: 0, Name: "idle", State: Ready}
	idle.next = idle
	current = idle
	nextPID = 1
	childFrames = map[uint64]*gate.Registers{}

	switchContextFn = func(prevSP *uintptr, newSP uintptr) {}
	fxSaveFn = func(uintptr) {}
	fxRestoreFn = func(uintptr) {}
	switchPDTFn = func(uintptr) {}
	vmmFreeAddressSpace = func(uintptr) {}
	ticksFn = func() uint64 { return 0 }
}

func newTestProcess(name string) *Process {
	p := &Process{
		PID:        allocPID(),
		State:      Ready,
		Name:       name,
		VMAs:       &vma.List{},
		FDTable:    vfs.NewFDTable(),
		WaitForPID: -1,
	}
	enqueue(p)
	return p
}

func TestScheduleRoundRobinsReadyProcesses(t *testing.T) {
	resetScheduler()
	a := newTestProcess("a")
	b := newTestProcess("b")

	Schedule() // idle -> b (enqueue links each new process right after current, so b precedes a)
	first := current
	Schedule()
	second := current

	if first == second {
		t.Fatalf("expected schedule to rotate between ready processes")
	}
	if first != a && first != b {
		t.Fatalf("expected a user process to be scheduled, got %v", first.Name)
	}
}

func TestScheduleFallsBackToIdleWhenNothingReady(t *testing.T) {
	resetScheduler()
	p := newTestProcess("blocked")
	p.State = Blocked

	Schedule()

	if current != idle {
		t.Fatalf("expected idle to run when no process is Ready, got %v", current.Name)
	}
}

func TestWakeSleepersPromotesExpiredSleepersOnly(t *testing.T) {
	resetScheduler()
	due := newTestProcess("due")
	due.State = Sleeping
	due.WakeTime = 10

	notDue := newTestProcess("not-due")
	notDue.State = Sleeping
	notDue.WakeTime = 1000

	ticksFn = func() uint64 { return 10 }

	lock.Acquire()
	wakeSleepersLocked()
	lock.Release()

	if due.State != Ready {
		t.Fatalf("expected expired sleeper to become Ready, got %v", due.State)
	}
	if notDue.State != Sleeping {
		t.Fatalf("expected sleeper with a future wake_time to stay Sleeping, got %v", notDue.State)
	}
}

func TestSleepComputesWakeTimeFromCurrentTicks(t *testing.T) {
	resetScheduler()
	p := newTestProcess("sleeper")
	// The first read (Sleep's) sees 500; later reads (the scheduler's wake
	// check) see 510, so Sleep returns after one Schedule.
	calls := 0
	ticksFn = func() uint64 {
		calls++
		if calls == 1 {
			return 500
		}
		return 510
	}

	Sleep(p, 10)

	if p.WakeTime != 510 {
		t.Fatalf("expected wake_time 510, got %d", p.WakeTime)
	}
}

func TestForkGivesChildZeroReturnAndParentChildPID(t *testing.T) {
	resetScheduler()
	setupFakePhysMemory(t, 256)

	parentPML4, err := vmm.CreateAddressSpace()
	if err != nil {
		t.Fatalf("CreateAddressSpace: %v", err)
	}
	parent := newTestProcess("parent")
	parent.PML4 = parentPML4
	current = parent

	frame := &gate.Registers{RAX: 999}
	childPID, ferr := Fork(parent, frame)
	if ferr != nil {
		t.Fatalf("Fork: %v", ferr)
	}

	if frame.RAX != childPID {
		t.Fatalf("expected parent's frame.RAX to be set to the child pid %d, got %d", childPID, frame.RAX)
	}

	childFrame := TakeChildFrame(childPID)
	if childFrame == nil {
		t.Fatalf("expected a stashed fork-return frame for the child")
	}
	if childFrame.RAX != 0 {
		t.Fatalf("expected child's stashed frame.RAX to be 0, got %d", childFrame.RAX)
	}

	child := findByPIDLocked(childPID)
	if child == nil {
		t.Fatalf("expected child to be enqueued in the scheduler ring")
	}
	if child.ParentPID != parent.PID {
		t.Fatalf("expected child.ParentPID == parent.PID")
	}
	if child.PML4 == parent.PML4 {
		t.Fatalf("expected child to have its own PML4")
	}
}

func TestExitThenWait4ReapsZombieChild(t *testing.T) {
	resetScheduler()
	setupFakePhysMemory(t, 256)

	parentPML4, err := vmm.CreateAddressSpace()
	if err != nil {
		t.Fatalf("CreateAddressSpace: %v", err)
	}
	parent := newTestProcess("parent")
	parent.PML4 = parentPML4
	current = parent

	childPID, ferr := Fork(parent, &gate.Registers{})
	if ferr != nil {
		t.Fatalf("Fork: %v", ferr)
	}
	child := findByPIDLocked(childPID)

	Exit(child, 42)
	if child.State != Zombie {
		t.Fatalf("expected child to be Zombie after Exit, got %v", child.State)
	}

	pid, status, werr := Wait4(parent, int64(childPID))
	if werr != nil {
		t.Fatalf("Wait4: %v", werr)
	}
	if pid != childPID || status != 42 {
		t.Fatalf("expected (pid=%d, status=42), got (pid=%d, status=%d)", childPID, pid, status)
	}
}

func TestWait4ReturnsErrorWithNoMatchingChild(t *testing.T) {
	resetScheduler()
	parent := newTestProcess("parent")

	if _, _, err := Wait4(parent, 12345); err == nil {
		t.Fatalf("expected an error waiting on a nonexistent child")
	}
}
