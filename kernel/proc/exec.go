package proc

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/elf"
	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/mm/vma"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
	"github.com/achilleasa/uniker/kernel/vfs"
)

var (
	errExecRead = &kernel.Error{Module: "proc", Message: "exec: failed to read image"}
)

// readFileFn is a seam over vfs's path-based read so tests can exec a
// synthetic in-memory image without a mounted filesystem.
var readFileFn = readWholeFile

func readWholeFile(table *vfs.FDTable, absPath string) ([]byte, *kernel.Error) {
	stat, err := vfs.StatPath(absPath)
	if err != nil {
		return nil, err
	}
	fd, err := vfs.Open(table, absPath, vfs.ORdOnly)
	if err != nil {
		return nil, err
	}
	defer table.Close(fd)

	buf := make([]byte, stat.Size)
	total := 0
	for total < len(buf) {
		n, rerr := vfs.Read(table, fd, buf[total:])
		if rerr != nil {
			return nil, rerr
		}
		if n == 0 {
			break
		}
		total += n
	}
	return buf[:total], nil
}

// Exec implements spec.md §4.5's non-POSIX exec: it resolves path against
// parent's cwd, loads it as a fresh child process, and returns that child.
// The parent is expected to call Wait4 on the returned pid (the "exec_done"
// handshake) to observe its exit status.
func Exec(parent *Process, path string) (*Process, *kernel.Error) {
	absPath := vfs.ResolveRelativePath(parent.Cwd, path)

	data, err := readFileFn(parent.FDTable, absPath)
	if err != nil {
		return nil, errExecRead
	}
	if verr := elf.Validate(data); verr != nil {
		return nil, verr
	}

	childPML4, cerr := vmm.CreateAddressSpace()
	if cerr != nil {
		return nil, cerr
	}

	entry, lerr := elf.Load(data, childPML4, true)
	if lerr != nil {
		vmm.FreeAddressSpace(childPML4)
		return nil, lerr
	}

	childVMAs := &vma.List{}
	childVMAs.Add(elf.UserStackTop-elf.UserStackPages*PageSize, elf.UserStackTop, vma.Read|vma.Write|vma.User, vma.Stack)

	child := &Process{
		PID:        allocPID(),
		ParentPID:  parent.PID,
		Name:       path,
		State:      Ready,
		PML4:       childPML4,
		VMAs:       childVMAs,
		FDTable:    vfs.NewFDTable(),
		Cwd:        parent.Cwd,
		WaitForPID: -1,
	}
	stashChildFrame(child, &gate.Registers{RIP: uint64(entry), RSP: uint64(elf.UserStackTop)})
	enqueue(child)

	return child, nil
}
