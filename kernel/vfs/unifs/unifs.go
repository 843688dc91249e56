// Package unifs implements the flat, read-only boot ROM filesystem: a
// {magic, [{name, size, payload}...]} image assembled at build time by
// cmd/mkimage and handed to the kernel as a Limine boot module. Supplements
// spec.md's core filesystem set per original_source/include/kernel/fs/unifs.h.
package unifs

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/vfs"
)

// Magic is the fixed 8-byte signature at the start of every unifs image.
const Magic = "UNIFS v1"

// NameFieldSize is the fixed width of the name field in a unifs record;
// cmd/mkimage pads names to exactly this width when assembling an image.
const NameFieldSize = 32

var (
	errBadMagic  = &kernel.Error{Module: "unifs", Message: "bad unifs image magic"}
	errNotFound  = &kernel.Error{Module: "unifs", Message: "no such file"}
	errReadOnly  = &kernel.Error{Module: "unifs", Message: "unifs is read-only"}
)

type record struct {
	name string
	data []byte
}

// FS is a parsed, in-memory boot ROM image.
type FS struct {
	records []record
}

// Mount parses image (the raw bytes of a Limine-supplied module) and returns
// the filesystem plus a root vnode listing every record as a flat directory.
func Mount(image []byte) (*FS, *vfs.Vnode, *kernel.Error) {
	if len(image) < 8 || string(image[:8]) != Magic {
		return nil, nil, errBadMagic
	}

	fs := &FS{}
	off := 8
	for off+NameFieldSize+4 <= len(image) {
		nameBuf := image[off : off+NameFieldSize]
		off += NameFieldSize
		nul := indexByte(nameBuf, 0)
		if nul < 0 {
			nul = len(nameBuf)
		}
		name := string(nameBuf[:nul])
		if name == "" {
			break
		}

		size := le32(image, off)
		off += 4
		if off+int(size) > len(image) {
			break
		}
		fs.records = append(fs.records, record{name: name, data: image[off : off+int(size)]})
		off += int(size)
	}

	root := vfs.NewVnode(rootOps(fs), 0, 0, true, 0)
	return fs, root, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// TotalSize returns the combined byte size of every record (unifs_get_total_size).
func (fs *FS) TotalSize() uint64 {
	var total uint64
	for _, r := range fs.records {
		total += uint64(len(r.data))
	}
	return total
}

// FileCount returns the number of records (unifs_get_file_count).
func (fs *FS) FileCount() int { return len(fs.records) }

func rootOps(fs *FS) *vfs.Ops {
	return &vfs.Ops{
		Lookup: func(_ *vfs.Vnode, name string) (*vfs.Vnode, *kernel.Error) {
			for i, r := range fs.records {
				if r.name == name {
					return vfs.NewVnode(fileOps(fs, i), uint64(i), uint64(i), false, int64(len(r.data))), nil
				}
			}
			return nil, errNotFound
		},
		Readdir: func(_ *vfs.Vnode, index int) (vfs.DirEntry, *kernel.Error) {
			if index >= len(fs.records) {
				return vfs.DirEntry{End: true}, nil
			}
			return vfs.DirEntry{Name: fs.records[index].name}, nil
		},
	}
}

func fileOps(fs *FS, idx int) *vfs.Ops {
	return &vfs.Ops{
		Read: func(n *vfs.Vnode, offset int64, buf []byte) (int, *kernel.Error) {
			data := fs.records[idx].data
			if offset >= int64(len(data)) {
				return 0, nil
			}
			return copy(buf, data[offset:]), nil
		},
		Write: func(*vfs.Vnode, int64, []byte) (int, *kernel.Error) {
			return -1, errReadOnly
		},
	}
}
