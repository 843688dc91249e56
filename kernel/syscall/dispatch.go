package syscall

import (
	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/hal"
	"github.com/achilleasa/uniker/kernel/proc"
	"github.com/achilleasa/uniker/kernel/vfs"
	"github.com/achilleasa/uniker/kernel/vfs/pipe"
)

// invalid is the fixed −1 return value every failing syscall produces; the
// dispatcher never panics on bad user input (spec.md §4.6).
const invalid = ^uint64(0) // -1 as uint64, matching the register ABI

// Dispatch decodes and executes one syscall on behalf of current, using
// frame both for its arguments (for syscalls like fork that need the whole
// frame) and as the destination for the return value in RAX.
func Dispatch(current *proc.Process, num Number, arg1, arg2, arg3 uintptr, frame *gate.Registers) uint64 {
	var ret uint64
	switch num {
	case Read:
		ret = sysRead(current, int(arg1), arg2, arg3)
	case Write:
		ret = sysWrite(current, int(arg1), arg2, arg3)
	case Open:
		ret = sysOpen(current, arg1)
	case Close:
		ret = sysClose(current, int(arg1))
	case Pipe:
		ret = sysPipe(current, arg1)
	case Getdents:
		ret = sysGetdents(current, int(arg1), int(arg2), arg3)
	case Getpid:
		ret = current.PID
	case Fork:
		// proc.Fork sets frame.RAX for the parent itself (and the
		// child's stashed frame separately), so RAX is not
		// overwritten again below.
		pid, err := proc.Fork(current, frame)
		if err != nil {
			frame.RAX = invalid
			return invalid
		}
		return pid
	case Exit:
		proc.Exit(current, int32(arg1))
		return 0 // unreachable: exit never returns
	case Exec:
		ret = sysExec(current, arg1)
	case Wait4:
		ret = sysWait4(current, int64(arg1), arg2)
	default:
		ret = invalid
	}
	frame.RAX = ret
	return ret
}

func sysRead(current *proc.Process, fd int, bufAddr, n uintptr) uint64 {
	if fd == stdin {
		return 0
	}
	buf, ok := userBytes(bufAddr, n)
	if !ok {
		return invalid
	}
	read, err := vfs.Read(current.FDTable, fd, buf)
	if err != nil {
		return invalid
	}
	return uint64(read)
}

func sysWrite(current *proc.Process, fd int, bufAddr, n uintptr) uint64 {
	buf, ok := userBytes(bufAddr, n)
	if !ok {
		return invalid
	}
	if fd == stdout || fd == stderr {
		written, _ := hal.ActiveConsole.Write(buf)
		return uint64(written)
	}
	written, err := vfs.Write(current.FDTable, fd, buf)
	if err != nil {
		return invalid
	}
	return uint64(written)
}

func sysOpen(current *proc.Process, pathAddr uintptr) uint64 {
	path, ok := userString(pathAddr)
	if !ok {
		return invalid
	}
	absPath := vfs.ResolveRelativePath(current.Cwd, path)
	fd, err := vfs.Open(current.FDTable, absPath, vfs.ORdWr)
	if err != nil {
		return invalid
	}
	return uint64(fd)
}

func sysClose(current *proc.Process, fd int) uint64 {
	if err := current.FDTable.Close(fd); err != nil {
		return invalid
	}
	return 0
}

func sysPipe(current *proc.Process, fdsAddr uintptr) uint64 {
	fds, ok := userBytes(fdsAddr, 8)
	if !ok {
		return invalid
	}
	readEnd, writeEnd, err := pipe.Create()
	if err != nil {
		return invalid
	}
	rfd, rerr := current.FDTable.Alloc(readEnd, vfs.ORdOnly, 0)
	wfd, werr := current.FDTable.Alloc(writeEnd, vfs.OWrOnly, 0)
	if rerr != nil || werr != nil {
		return invalid
	}
	putLE32(fds[0:4], uint32(rfd))
	putLE32(fds[4:8], uint32(wfd))
	return 0
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func sysGetdents(current *proc.Process, fd int, index int, nameAddr uintptr) uint64 {
	entry, err := vfs.Readdir(current.FDTable, fd, index)
	if err != nil || entry.End {
		return invalid
	}
	out, ok := userBytes(nameAddr, 256)
	if !ok {
		return invalid
	}
	n := copy(out, entry.Name)
	if n < len(out) {
		out[n] = 0
	}
	return 0
}

func sysExec(current *proc.Process, pathAddr uintptr) uint64 {
	path, ok := userString(pathAddr)
	if !ok {
		return invalid
	}
	child, err := proc.Exec(current, path)
	if err != nil {
		return invalid
	}
	_, status, werr := proc.Wait4(current, int64(child.PID))
	if werr != nil {
		return invalid
	}
	return uint64(uint32(status))
}

func sysWait4(current *proc.Process, pid int64, statusAddr uintptr) uint64 {
	childPID, status, err := proc.Wait4(current, pid)
	if err != nil {
		return invalid
	}
	if statusAddr != 0 {
		if out, ok := userBytes(statusAddr, 4); ok {
			putLE32(out, uint32(status))
		}
	}
	return childPID
}
