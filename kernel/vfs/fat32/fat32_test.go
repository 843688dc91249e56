package fat32

import (
	"bytes"
	"testing"

	"github.com/achilleasa/uniker/kernel/block"
)

// buildImage assembles a minimal 6-sector FAT32 image with bytesPerSector=512,
// sectorsPerCluster=1, reservedSectors=1, fatCount=1, sectorsPerFAT=1 and
// rootDirCluster=2. With that layout clusterToLBA(c) == c, which keeps the
// sector math below readable: sector 0 is the boot sector, sector 1 is the
// (single) FAT, sector 2 is the root directory, and sectors 3-5 hold file
// data for "hi.txt" (cluster 3) and "big.bin" (clusters 4-5).
func buildImage() []byte {
	img := make([]byte, 6*block.SectorSize)

	boot := img[0:512]
	putLE16(boot, 11, 512) // bytes per sector
	boot[13] = 1           // sectors per cluster
	putLE16(boot, 14, 1)   // reserved sectors
	boot[16] = 1           // fat count
	putLE32(boot, 36, 1)   // sectors per FAT
	putLE32(boot, 44, 2)   // root dir cluster
	boot[510] = 0x55
	boot[511] = 0xAA

	fat := img[512:1024]
	putLE32(fat, 2*4, 0x0FFFFFFF) // cluster 2 (root dir): end of chain
	putLE32(fat, 3*4, 0x0FFFFFFF) // cluster 3 (hi.txt): end of chain
	putLE32(fat, 4*4, 5)          // cluster 4 (big.bin, 1st): -> cluster 5
	putLE32(fat, 5*4, 0x0FFFFFFF) // cluster 5 (big.bin, 2nd): end of chain

	root := img[1024:1536]
	writeDirEntry(root[0:32], "HI      TXT", 0x20, 3, 2)
	writeDirEntry(root[32:64], "BIG     BIN", 0x20, 4, 600)
	// root[64] left 0x00: end-of-directory marker.

	copy(img[3*512:], []byte("hi"))
	copy(img[4*512:], bytes.Repeat([]byte{'A'}, 512))
	copy(img[5*512:], bytes.Repeat([]byte{'B'}, 88))

	return img
}

func putLE16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func putLE32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func writeDirEntry(e []byte, name83 string, attr byte, cluster uint32, size uint32) {
	copy(e[0:11], name83)
	e[11] = attr
	putLE16(e, 26, uint16(cluster))
	putLE32(e, 28, size)
}

func TestMountParsesBootSector(t *testing.T) {
	dev := block.NewRAMDisk(buildImage())
	fs, root, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if fs.bytesPerSector != 512 || fs.sectorsPerCluster != 1 || fs.rootDirCluster != 2 {
		t.Fatalf("unexpected boot sector fields: %+v", fs)
	}
	if !root.IsDir {
		t.Fatalf("expected root vnode to be a directory")
	}
}

func TestMountRejectsBadSignature(t *testing.T) {
	img := buildImage()
	img[510] = 0
	dev := block.NewRAMDisk(img)
	if _, _, err := Mount(dev); err != errBadBootSector {
		t.Fatalf("expected errBadBootSector, got %v", err)
	}
}

func TestReaddirListsBothFiles(t *testing.T) {
	dev := block.NewRAMDisk(buildImage())
	_, root, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	var names []string
	for i := 0; ; i++ {
		e, rerr := root.Ops.Readdir(root, i)
		if rerr != nil {
			t.Fatalf("Readdir: %v", rerr)
		}
		if e.End {
			break
		}
		names = append(names, e.Name)
	}
	if len(names) != 2 || names[0] != "HI.TXT" || names[1] != "BIG.BIN" {
		t.Fatalf("unexpected directory listing: %v", names)
	}
}

func TestLookupAndReadSmallFile(t *testing.T) {
	dev := block.NewRAMDisk(buildImage())
	_, root, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	node, lerr := root.Ops.Lookup(root, "hi.txt")
	if lerr != nil {
		t.Fatalf("Lookup: %v", lerr)
	}
	if node.Size != 2 {
		t.Fatalf("expected size 2, got %d", node.Size)
	}

	buf := make([]byte, 2)
	n, rerr := node.Ops.Read(node, 0, buf)
	if rerr != nil || string(buf[:n]) != "hi" {
		t.Fatalf("Read: got %q err=%v", buf[:n], rerr)
	}
}

func TestReadFollowsClusterChainAcrossBoundary(t *testing.T) {
	dev := block.NewRAMDisk(buildImage())
	_, root, err := Mount(dev)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	node, lerr := root.Ops.Lookup(root, "big.bin")
	if lerr != nil {
		t.Fatalf("Lookup: %v", lerr)
	}
	if node.Size != 600 {
		t.Fatalf("expected size 600, got %d", node.Size)
	}

	// First read stays within cluster 4.
	buf := make([]byte, 500)
	n, rerr := node.Ops.Read(node, 0, buf)
	if rerr != nil || n != 500 {
		t.Fatalf("Read: n=%d err=%v", n, rerr)
	}
	for _, b := range buf {
		if b != 'A' {
			t.Fatalf("expected cluster 4 bytes to be 'A'")
		}
	}

	// Sequential follow-on read starts from the cached position (cluster 4,
	// offset 0) and follows the chain into cluster 5.
	buf2 := make([]byte, 100)
	n, rerr = node.Ops.Read(node, 500, buf2)
	if rerr != nil || n != 100 {
		t.Fatalf("Read: n=%d err=%v", n, rerr)
	}
	for i := 0; i < 12; i++ {
		if buf2[i] != 'A' {
			t.Fatalf("expected tail of cluster 4 to still be 'A' at %d", i)
		}
	}
	for i := 12; i < 100; i++ {
		if buf2[i] != 'B' {
			t.Fatalf("expected cluster 5 bytes to be 'B' at %d", i)
		}
	}
}
