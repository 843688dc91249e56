// Package vfs implements the virtual filesystem layer: a mount list keyed by
// absolute path prefixes, a reference-counted vnode cache, a per-process file
// descriptor table (FDTable) and the read/write/seek/readdir/stat/mkdir/unlink
// operations every filesystem driver (fat32, unifs, pipe) plugs into through
// an Ops table (spec.md §4.7).
package vfs

import "github.com/achilleasa/uniker/kernel"

var (
	errNotFound     = &kernel.Error{Module: "vfs", Message: "no such file or directory"}
	errNotDir       = &kernel.Error{Module: "vfs", Message: "not a directory"}
	errIsDir        = &kernel.Error{Module: "vfs", Message: "is a directory"}
	errExists       = &kernel.Error{Module: "vfs", Message: "file exists"}
	errNotSupported = &kernel.Error{Module: "vfs", Message: "operation not supported by filesystem"}
	errBadSeek      = &kernel.Error{Module: "vfs", Message: "invalid seek offset"}
)

// Ops is the set of operations a filesystem driver binds to a Vnode. Drivers
// that don't support a given call (fat32's writer side, for instance) leave
// the matching field nil; callers see errNotSupported.
type Ops struct {
	Lookup  func(dir *Vnode, name string) (*Vnode, *kernel.Error)
	Create  func(dir *Vnode, name string) (*Vnode, *kernel.Error)
	Read    func(n *Vnode, offset int64, buf []byte) (int, *kernel.Error)
	Write   func(n *Vnode, offset int64, buf []byte) (int, *kernel.Error)
	Readdir func(n *Vnode, index int) (DirEntry, *kernel.Error)
	Mkdir   func(dir *Vnode, name string) (*Vnode, *kernel.Error)
	Unlink  func(dir *Vnode, name string) *kernel.Error
	Close   func(n *Vnode)
}

// DirEntry is one result of a readdir call.
type DirEntry struct {
	Name  string
	IsDir bool
	End   bool // true once index has run past the last entry
}

// Stat mirrors the subset of vnode metadata callers can observe.
type Stat struct {
	Size    int64
	InodeID uint64
	IsDir   bool
}

// Vnode is the in-memory representation of an open filesystem object. Ops is
// shared by every vnode of the same driver; FSData is the driver's private
// per-node state (a FAT cluster number, a unifs record index, a pipe id).
type Vnode struct {
	Ops      *Ops
	FSData   uint64
	InodeID  uint64
	IsDir    bool
	Size     int64
	RefCount int32

	isMountRoot bool
}

func newVnode(ops *Ops, fsData, inodeID uint64, isDir bool, size int64) *Vnode {
	return &Vnode{Ops: ops, FSData: fsData, InodeID: inodeID, IsDir: isDir, Size: size, RefCount: 1}
}

// NewVnode is the constructor filesystem drivers use to hand a node back to
// the VFS with an initial reference already held by the caller.
func NewVnode(ops *Ops, fsData, inodeID uint64, isDir bool, size int64) *Vnode {
	return newVnode(ops, fsData, inodeID, isDir, size)
}

func (n *Vnode) ref() *Vnode {
	n.RefCount++
	return n
}

// closeVnode decrements n's reference count; at zero, if n is not a pinned
// mount root, it invokes the driver's Close hook (if any) and drops the node.
func closeVnode(n *Vnode) {
	if n == nil {
		return
	}
	n.RefCount--
	if n.RefCount > 0 || n.isMountRoot {
		return
	}
	if n.Ops != nil && n.Ops.Close != nil {
		n.Ops.Close(n)
	}
}

// CloseVnode is the exported counterpart used by callers holding a raw
// reference obtained from LookupVnode.
func CloseVnode(n *Vnode) { closeVnode(n) }
