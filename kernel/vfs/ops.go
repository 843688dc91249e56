package vfs

import "github.com/achilleasa/uniker/kernel"

// Open resolves path relative to an already-canonical absolute path,
// optionally creating it (OCreat) via the parent's Ops.Create, and installs
// the result into table. Write flags on a directory are rejected.
func Open(table *FDTable, path string, flags OpenFlag) (int, *kernel.Error) {
	node, err := LookupVnode(path)
	if err == errNotFound && flags&OCreat != 0 {
		parent, leaf, perr := parentAndLeaf(path)
		if perr != nil {
			return -1, perr
		}
		if parent.Ops == nil || parent.Ops.Create == nil {
			closeVnode(parent)
			return -1, errNotSupported
		}
		node, err = parent.Ops.Create(parent, leaf)
		closeVnode(parent)
	}
	if err != nil {
		return -1, err
	}

	if node.IsDir && flags.writable() {
		closeVnode(node)
		return -1, errIsDir
	}

	offset := int64(0)
	if flags&OAppend != 0 {
		offset = node.Size
	}
	fd, aerr := table.Alloc(node, flags, offset)
	if aerr != nil {
		closeVnode(node)
		return -1, aerr
	}
	return fd, nil
}

// Read copies up to len(buf) bytes starting at fd's current offset.
func Read(table *FDTable, fd int, buf []byte) (int, *kernel.Error) {
	table.lock.Acquire()
	f := table.get(fd)
	if f == nil {
		table.lock.Release()
		return -1, errBadFD
	}
	node, offset := f.node, f.offset
	table.lock.Release()

	if node.Ops == nil || node.Ops.Read == nil {
		return -1, errNotSupported
	}
	n, err := node.Ops.Read(node, offset, buf)
	if err != nil {
		return -1, err
	}

	table.lock.Acquire()
	if f := table.get(fd); f != nil {
		f.offset += int64(n)
	}
	table.lock.Release()
	return n, nil
}

// Write copies buf starting at fd's current offset (or at node.Size if the
// fd was opened O_APPEND).
func Write(table *FDTable, fd int, buf []byte) (int, *kernel.Error) {
	table.lock.Acquire()
	f := table.get(fd)
	if f == nil {
		table.lock.Release()
		return -1, errBadFD
	}
	node := f.node
	offset := f.offset
	if f.flags&OAppend != 0 {
		offset = node.Size
	}
	table.lock.Release()

	if node.Ops == nil || node.Ops.Write == nil {
		return -1, errNotSupported
	}
	n, err := node.Ops.Write(node, offset, buf)
	if err != nil {
		return -1, err
	}

	table.lock.Acquire()
	if f := table.get(fd); f != nil {
		f.offset = offset + int64(n)
		if f.offset > node.Size {
			node.Size = f.offset
		}
	}
	table.lock.Release()
	return n, nil
}

// SeekWhence selects the reference point for Seek.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCur
	SeekEnd
)

// Seek repositions fd's cursor and returns the new absolute offset.
func Seek(table *FDTable, fd int, offset int64, whence SeekWhence) (int64, *kernel.Error) {
	table.lock.Acquire()
	defer table.lock.Release()
	f := table.get(fd)
	if f == nil {
		return -1, errBadFD
	}

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.offset
	case SeekEnd:
		base = f.node.Size
	}
	newOffset := base + offset
	if newOffset < 0 {
		return -1, errBadSeek
	}
	f.offset = newOffset
	return newOffset, nil
}

// Readdir returns the index-th surviving entry of the directory open on fd.
func Readdir(table *FDTable, fd int, index int) (DirEntry, *kernel.Error) {
	table.lock.Acquire()
	f := table.get(fd)
	if f == nil {
		table.lock.Release()
		return DirEntry{}, errBadFD
	}
	node := f.node
	table.lock.Release()

	if !node.IsDir {
		return DirEntry{}, errNotDir
	}
	if node.Ops == nil || node.Ops.Readdir == nil {
		return DirEntry{}, errNotSupported
	}
	return node.Ops.Readdir(node, index)
}

// StatPath resolves path and reports its metadata.
func StatPath(path string) (Stat, *kernel.Error) {
	node, err := LookupVnode(path)
	if err != nil {
		return Stat{}, err
	}
	defer closeVnode(node)
	return Stat{Size: node.Size, InodeID: node.InodeID, IsDir: node.IsDir}, nil
}

// Mkdir creates a directory at path via the parent's Ops.Mkdir.
func Mkdir(path string) *kernel.Error {
	parent, leaf, err := parentAndLeaf(path)
	if err != nil {
		return err
	}
	defer closeVnode(parent)
	if parent.Ops == nil || parent.Ops.Mkdir == nil {
		return errNotSupported
	}
	child, merr := parent.Ops.Mkdir(parent, leaf)
	if merr != nil {
		return merr
	}
	closeVnode(child)
	return nil
}

// Unlink removes the entry named by path's final component.
func Unlink(path string) *kernel.Error {
	parent, leaf, err := parentAndLeaf(path)
	if err != nil {
		return err
	}
	defer closeVnode(parent)
	if parent.Ops == nil || parent.Ops.Unlink == nil {
		return errNotSupported
	}
	return parent.Ops.Unlink(parent, leaf)
}
