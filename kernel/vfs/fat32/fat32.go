// Package fat32 is a read-only FAT32 driver backed by a block.Device, wired
// into the VFS through a vfs.Ops table (spec.md §4.9). Writes, creates,
// unlinks and mkdir are not implemented: the corresponding Ops fields are
// left nil and VFS callers see errNotSupported.
package fat32

import (
	"strings"

	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/block"
	"github.com/achilleasa/uniker/kernel/vfs"
)

const endOfChain = 0x0FFFFFF8

var (
	errBadBootSector = &kernel.Error{Module: "fat32", Message: "invalid FAT32 boot sector"}
	errIO            = &kernel.Error{Module: "fat32", Message: "block device I/O error"}
)

// FS is one mounted FAT32 volume.
type FS struct {
	dev               block.Device
	bytesPerSector    uint32
	sectorsPerCluster uint32
	reservedSectors   uint32
	fatCount          uint32
	sectorsPerFAT     uint32
	rootDirCluster    uint32
}

// Mount parses dev's boot sector and returns a mounted filesystem plus the
// root vnode, ready to hand to vfs.Mount.
func Mount(dev block.Device) (*FS, *vfs.Vnode, *kernel.Error) {
	sector := make([]byte, block.SectorSize)
	if err := dev.ReadSectors(0, sector); err != nil {
		return nil, nil, errIO
	}
	if sector[510] != 0x55 || sector[511] != 0xAA {
		return nil, nil, errBadBootSector
	}

	fs := &FS{
		dev:               dev,
		bytesPerSector:    le16(sector, 11),
		sectorsPerCluster: uint32(sector[13]),
		reservedSectors:   le16(sector, 14),
		fatCount:          uint32(sector[16]),
		sectorsPerFAT:     le32(sector, 36),
		rootDirCluster:    le32(sector, 44),
	}
	if fs.bytesPerSector == 0 || fs.sectorsPerCluster == 0 {
		return nil, nil, errBadBootSector
	}

	root := vfs.NewVnode(ops, uint64(fs.rootDirCluster), uint64(fs.rootDirCluster), true, 0)
	registry[root] = fs
	return fs, root, nil
}

func le16(b []byte, off int) uint32 { return uint32(b[off]) | uint32(b[off+1])<<8 }
func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func (fs *FS) clusterSize() uint32 { return fs.bytesPerSector * fs.sectorsPerCluster }

func (fs *FS) clusterToLBA(cluster uint32) uint64 {
	dataStart := fs.reservedSectors + fs.fatCount*fs.sectorsPerFAT
	return uint64(dataStart) + uint64(cluster-2)*uint64(fs.sectorsPerCluster)
}

// nextCluster follows the FAT chain from cluster, returning its FAT entry
// masked to 28 bits: the next cluster number, or a value >= endOfChain if c
// is the chain's tail.
func (fs *FS) nextCluster(c uint32) (uint32, *kernel.Error) {
	fatOffset := c * 4
	fatSector := fs.reservedSectors + fatOffset/fs.bytesPerSector
	off := fatOffset % fs.bytesPerSector

	sector := make([]byte, fs.bytesPerSector)
	if err := fs.dev.ReadSectors(uint64(fatSector), sector); err != nil {
		return 0, errIO
	}
	return le32(sector, int(off)) & 0x0FFFFFFF, nil
}

func (fs *FS) readCluster(cluster uint32, buf []byte) *kernel.Error {
	lba := fs.clusterToLBA(cluster)
	sectorBuf := make([]byte, block.SectorSize)
	for s := uint32(0); s < fs.sectorsPerCluster; s++ {
		if err := fs.dev.ReadSectors(lba+uint64(s), sectorBuf); err != nil {
			return errIO
		}
		copy(buf[s*fs.bytesPerSector:], sectorBuf)
	}
	return nil
}

// readCache is per-vnode fast-forward state: the cluster the last read()
// left off in and that cluster's starting byte offset, so a sequential
// reader doesn't walk the chain from the head on every call.
type readCache struct {
	cluster uint32
	offset  int64
}

var caches = map[*vfs.Vnode]*readCache{}

func readFile(n *vfs.Vnode, offset int64, buf []byte) (int, *kernel.Error) {
	fs := fsForNode(n)
	clusterSize := int64(fs.clusterSize())

	cluster := uint32(n.InodeID)
	base := int64(0)
	if c, ok := caches[n]; ok && offset >= c.offset {
		cluster = c.cluster
		base = c.offset
	}

	clustersToSkip := (offset - base) / clusterSize
	for i := int64(0); i < clustersToSkip; i++ {
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if next >= endOfChain {
			return 0, nil
		}
		cluster = next
		base += clusterSize
	}

	clusterBuf := make([]byte, clusterSize)
	total := 0
	remaining := int(n.Size - offset)
	if remaining <= 0 {
		return 0, nil
	}
	want := len(buf)
	if want > remaining {
		want = remaining
	}

	for total < want {
		if cluster >= endOfChain {
			break
		}
		if err := fs.readCluster(cluster, clusterBuf); err != nil {
			return total, err
		}
		intraOffset := int((offset + int64(total)) - base)
		n2 := copy(buf[total:want], clusterBuf[intraOffset:])
		total += n2

		caches[n] = &readCache{cluster: cluster, offset: base}

		if total >= want {
			break
		}
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return total, err
		}
		cluster = next
		base += clusterSize
	}
	return total, nil
}

type dirEntryRaw struct {
	name [11]byte
	attr byte
	size uint32
	clus uint32
}

func (fs *FS) readDirEntries(startCluster uint32) ([]dirEntryRaw, *kernel.Error) {
	clusterSize := fs.clusterSize()
	buf := make([]byte, clusterSize)
	var entries []dirEntryRaw

	cluster := startCluster
	for cluster < endOfChain {
		if err := fs.readCluster(cluster, buf); err != nil {
			return nil, err
		}
		for off := 0; off+32 <= len(buf); off += 32 {
			raw := buf[off : off+32]
			if raw[0] == 0x00 {
				return entries, nil
			}
			if raw[0] == 0xE5 {
				continue
			}
			attr := raw[11]
			if attr == 0x0F || attr&0x08 != 0 {
				continue
			}
			var e dirEntryRaw
			copy(e.name[:], raw[0:11])
			e.attr = attr
			e.clus = uint32(le16(raw, 26)) | le32(raw, 20)<<16&0xFFFF0000
			e.size = le32(raw, 28)
			entries = append(entries, e)
		}
		next, err := fs.nextCluster(cluster)
		if err != nil {
			return entries, err
		}
		cluster = next
	}
	return entries, nil
}

func to83Display(raw [11]byte) string {
	name := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func to83Compare(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base := name
	ext := ""
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		base, ext = name[:idx], name[idx+1:]
	}
	base = strings.ToUpper(base)
	ext = strings.ToUpper(ext)
	for i := 0; i < len(base) && i < 8; i++ {
		out[i] = base[i]
	}
	for i := 0; i < len(ext) && i < 3; i++ {
		out[8+i] = ext[i]
	}
	return out
}

func readdir(n *vfs.Vnode, index int) (vfs.DirEntry, *kernel.Error) {
	fs := fsForNode(n)
	entries, err := fs.readDirEntries(uint32(n.InodeID))
	if err != nil {
		return vfs.DirEntry{}, err
	}
	if index >= len(entries) {
		return vfs.DirEntry{End: true}, nil
	}
	e := entries[index]
	return vfs.DirEntry{Name: to83Display(e.name), IsDir: e.attr&0x10 != 0}, nil
}

func lookup(dir *vfs.Vnode, name string) (*vfs.Vnode, *kernel.Error) {
	fs := fsForNode(dir)
	entries, err := fs.readDirEntries(uint32(dir.InodeID))
	if err != nil {
		return nil, err
	}
	want := to83Compare(name)
	for _, e := range entries {
		if e.name == want {
			isDir := e.attr&0x10 != 0
			child := vfs.NewVnode(ops, uint64(e.clus), uint64(e.clus), isDir, int64(e.size))
			registry[child] = fs
			return child, nil
		}
	}
	return nil, &kernel.Error{Module: "fat32", Message: "no such file or directory"}
}

// registry maps every vnode this driver has handed out back to its owning
// FS, since vfs.Ops callbacks only receive the vnode.
var registry = map[*vfs.Vnode]*FS{}

func fsForNode(n *vfs.Vnode) *FS { return registry[n] }

var ops *vfs.Ops

func init() {
	ops = &vfs.Ops{
		Lookup:  lookup,
		Read:    readFile,
		Readdir: readdir,
	}
}
