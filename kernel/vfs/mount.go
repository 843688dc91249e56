package vfs

import (
	"strings"

	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/sync"
)

// mount describes one filesystem attached at an absolute path prefix.
type mount struct {
	prefix string
	root   *Vnode
}

var (
	mountLock sync.IRQSpinlock
	mounts    []*mount
)

// Mount attaches root at the absolute path prefix. Later mounts win ties
// against an earlier mount sharing the same prefix length.
func Mount(prefix string, root *Vnode) {
	root.isMountRoot = true
	mountLock.Acquire()
	mounts = append(mounts, &mount{prefix: prefix, root: root})
	mountLock.Release()
}

// resolve finds the longest matching mount prefix for path, returning the
// mount's root vnode and the residual path beneath it. Among equal-length
// prefixes the most recently mounted one wins.
func resolve(path string) (*Vnode, string) {
	mountLock.Acquire()
	defer mountLock.Release()

	var best *mount
	for _, m := range mounts {
		if !strings.HasPrefix(path, m.prefix) {
			continue
		}
		if m.prefix != "/" && len(path) > len(m.prefix) && path[len(m.prefix)] != '/' {
			continue
		}
		if best == nil || len(m.prefix) >= len(best.prefix) {
			best = m
		}
	}
	if best == nil {
		return nil, ""
	}
	residual := strings.TrimPrefix(path, best.prefix)
	residual = strings.TrimPrefix(residual, "/")
	return best.root, residual
}

// LookupVnode resolves path to its mount, then walks the residual path
// component by component via Ops.Lookup, returning a vnode the caller owns
// a reference to (release it with CloseVnode).
func LookupVnode(path string) (*Vnode, *kernel.Error) {
	root, residual := resolve(path)
	if root == nil {
		return nil, errNotFound
	}
	current := root.ref()
	if residual == "" {
		return current, nil
	}
	for _, part := range strings.Split(residual, "/") {
		if part == "" {
			continue
		}
		if !current.IsDir {
			closeVnode(current)
			return nil, errNotDir
		}
		if current.Ops == nil || current.Ops.Lookup == nil {
			closeVnode(current)
			return nil, errNotSupported
		}
		next, err := current.Ops.Lookup(current, part)
		closeVnode(current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// parentAndLeaf resolves everything in path but the final component,
// returning the parent directory vnode (owned by the caller) and the leaf
// name, for operations that may need to create the leaf (open O_CREAT,
// mkdir, unlink).
func parentAndLeaf(path string) (*Vnode, string, *kernel.Error) {
	idx := strings.LastIndexByte(path, '/')
	parentPath := path[:idx]
	if parentPath == "" {
		parentPath = "/"
	}
	leaf := path[idx+1:]
	if leaf == "" {
		return nil, "", errNotFound
	}
	parent, err := LookupVnode(parentPath)
	if err != nil {
		return nil, "", err
	}
	return parent, leaf, nil
}
