package vfs

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/sync"
)

// MaxFDs bounds each process's open file table.
const MaxFDs = 128

// OpenFlag mirrors the open(2) flag bits the VFS understands.
type OpenFlag uint32

const (
	ORdOnly OpenFlag = 0
	OWrOnly OpenFlag = 1 << 0
	ORdWr   OpenFlag = 1 << 1
	OCreat  OpenFlag = 1 << 2
	OAppend OpenFlag = 1 << 3
)

func (f OpenFlag) writable() bool { return f&(OWrOnly|ORdWr) != 0 }

// file is one open-file-description: a vnode reference plus the cursor and
// flags used by read/write/seek/readdir.
type file struct {
	node     *Vnode
	offset   int64
	flags    OpenFlag
	dirIndex int
	inUse    bool
}

var errTooManyFiles = &kernel.Error{Module: "vfs", Message: "too many open files"}
var errBadFD = &kernel.Error{Module: "vfs", Message: "bad file descriptor"}

// FDTable is one process's open file descriptor set. Every process owns one
// (spec.md's process_t.fd_table); fork duplicates it by bumping the ref
// count on every still-open vnode.
type FDTable struct {
	lock  sync.IRQSpinlock
	files [MaxFDs]file
}

// NewFDTable returns an empty table.
func NewFDTable() *FDTable { return &FDTable{} }

// Alloc installs node as a freshly opened file and returns its fd.
func (t *FDTable) Alloc(node *Vnode, flags OpenFlag, offset int64) (int, *kernel.Error) {
	t.lock.Acquire()
	defer t.lock.Release()
	for i := range t.files {
		if !t.files[i].inUse {
			t.files[i] = file{node: node, offset: offset, flags: flags, inUse: true}
			return i, nil
		}
	}
	return -1, errTooManyFiles
}

func (t *FDTable) get(fd int) *file {
	if fd < 0 || fd >= MaxFDs || !t.files[fd].inUse {
		return nil
	}
	return &t.files[fd]
}

// Close releases fd: decrements the underlying vnode's ref count (freeing it
// at zero) and returns the slot to the pool.
func (t *FDTable) Close(fd int) *kernel.Error {
	t.lock.Acquire()
	f := t.get(fd)
	if f == nil {
		t.lock.Release()
		return errBadFD
	}
	node := f.node
	t.files[fd] = file{}
	t.lock.Release()

	closeVnode(node)
	return nil
}

// Clone duplicates every open entry into a fresh table, incrementing each
// referenced vnode's ref count (spec.md §4.5 fork semantics).
func (t *FDTable) Clone() *FDTable {
	t.lock.Acquire()
	defer t.lock.Release()

	clone := &FDTable{}
	for i := range t.files {
		if !t.files[i].inUse {
			continue
		}
		clone.files[i] = t.files[i]
		clone.files[i].node.ref()
	}
	return clone
}

// CloseAll releases every still-open fd; used when a process exits.
func (t *FDTable) CloseAll() {
	for i := range t.files {
		if t.files[i].inUse {
			t.Close(i)
		}
	}
}
