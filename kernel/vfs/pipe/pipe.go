// Package pipe implements the fixed-size anonymous pipe pool used for the
// pipe() syscall, exposed to the VFS as a pair of vnodes (spec.md §4.8).
package pipe

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/sync"
	"github.com/achilleasa/uniker/kernel/vfs"
)

// MaxPipes bounds the number of simultaneously live pipes.
const MaxPipes = 64

// BufferSize is the capacity of each pipe's ring buffer.
const BufferSize = 4096

type slot struct {
	buffer      [BufferSize]byte
	readPos     int
	writePos    int
	count       int
	readClosed  bool
	writeClosed bool
	inUse       bool
}

var (
	lock  sync.IRQSpinlock
	slots [MaxPipes]slot
)

var (
	errNoPipes    = &kernel.Error{Module: "pipe", Message: "no free pipe slots"}
	errBadPipe    = &kernel.Error{Module: "pipe", Message: "invalid pipe id"}
	errReadClosed = &kernel.Error{Module: "pipe", Message: "read end closed"}
)

// create allocates a slot and returns its id.
func create() (int, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()
	for i := range slots {
		if !slots[i].inUse {
			slots[i] = slot{inUse: true}
			return i, nil
		}
	}
	return -1, errNoPipes
}

func read(id int, buf []byte) (int, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()
	if id < 0 || id >= MaxPipes || !slots[id].inUse {
		return -1, errBadPipe
	}
	p := &slots[id]
	if p.count == 0 && p.writeClosed {
		return 0, nil
	}
	n := len(buf)
	if n > p.count {
		n = p.count
	}
	for i := 0; i < n; i++ {
		buf[i] = p.buffer[p.readPos]
		p.readPos = (p.readPos + 1) % BufferSize
	}
	p.count -= n
	return n, nil
}

func write(id int, buf []byte) (int, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()
	if id < 0 || id >= MaxPipes || !slots[id].inUse {
		return -1, errBadPipe
	}
	p := &slots[id]
	if p.readClosed {
		return -1, errReadClosed
	}
	space := BufferSize - p.count
	n := len(buf)
	if n > space {
		n = space
	}
	for i := 0; i < n; i++ {
		p.buffer[p.writePos] = buf[i]
		p.writePos = (p.writePos + 1) % BufferSize
	}
	p.count += n
	return n, nil
}

func closeRead(id int) {
	lock.Acquire()
	defer lock.Release()
	if id < 0 || id >= MaxPipes {
		return
	}
	slots[id].readClosed = true
	if slots[id].writeClosed {
		slots[id].inUse = false
	}
}

func closeWrite(id int) {
	lock.Acquire()
	defer lock.Release()
	if id < 0 || id >= MaxPipes {
		return
	}
	slots[id].writeClosed = true
	if slots[id].readClosed {
		slots[id].inUse = false
	}
}

var ops = &vfs.Ops{
	Read: func(n *vfs.Vnode, _ int64, buf []byte) (int, *kernel.Error) {
		return read(int(n.FSData), buf)
	},
	Write: func(n *vfs.Vnode, _ int64, buf []byte) (int, *kernel.Error) {
		return write(int(n.FSData), buf)
	},
	Close: func(n *vfs.Vnode) {
		if n.InodeID == 0 {
			closeRead(int(n.FSData))
		} else {
			closeWrite(int(n.FSData))
		}
	},
}

// Create allocates a new pipe and returns its read-end and write-end vnodes,
// each holding an initial reference the caller owns.
func Create() (readEnd, writeEnd *vfs.Vnode, err *kernel.Error) {
	id, err := create()
	if err != nil {
		return nil, nil, err
	}
	readEnd = vfs.NewVnode(ops, uint64(id), 0, false, 0)
	writeEnd = vfs.NewVnode(ops, uint64(id), 1, false, 0)
	return readEnd, writeEnd, nil
}
