package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

const (
	sectorSize        = 512
	sectorsPerCluster = 1
	reservedSectors   = 1
	fatCount          = 1
	rootDirCluster    = 2
	endOfChain        = 0x0FFFFFFF
)

// fat32Command assembles a single-FAT, single-directory-level FAT32 image
// for use as a test disk backing kernel/vfs/fat32, matching the on-disk
// layout fat32.Mount parses.
type fat32Command struct {
	manifest string
	out      string
}

func (*fat32Command) Name() string     { return "fat32" }
func (*fat32Command) Synopsis() string { return "assemble a flat FAT32 test disk image from a manifest" }
func (*fat32Command) Usage() string {
	return "fat32 -manifest <manifest.toml> -out <disk.img>\n"
}

func (c *fat32Command) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.manifest, "manifest", "", "path to the TOML manifest")
	f.StringVar(&c.out, "out", "disk.img", "output image path")
}

func (c *fat32Command) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.manifest == "" {
		log.Error("-manifest is required")
		return subcommands.ExitUsageError
	}

	m, err := loadManifest(c.manifest)
	if err != nil {
		log.WithError(err).Error("failed to read manifest")
		return subcommands.ExitFailure
	}

	img, err := buildFAT32Image(m)
	if err != nil {
		log.WithError(err).Error("failed to build FAT32 image")
		return subcommands.ExitFailure
	}

	if err := os.WriteFile(c.out, img, 0o644); err != nil {
		log.WithError(err).Error("failed to write image")
		return subcommands.ExitFailure
	}

	log.WithFields(logrus.Fields{
		"out":   c.out,
		"files": len(m.Files),
		"bytes": len(img),
	}).Info("wrote FAT32 disk image")
	return subcommands.ExitSuccess
}

type fat32File struct {
	shortName [11]byte
	cluster   uint32
	data      []byte
}

// buildFAT32Image lays out a boot sector, a single FAT, a one-sector root
// directory and each file's cluster-chained data, following the field
// layout kernel/vfs/fat32.Mount reads (original_source's fat32.h).
func buildFAT32Image(m *Manifest) ([]byte, error) {
	files := make([]fat32File, 0, len(m.Files))
	nextCluster := uint32(rootDirCluster + 1)
	var dataClusters [][]byte

	for _, f := range m.Files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		short, err := to83(f.Name)
		if err != nil {
			return nil, err
		}

		firstCluster := nextCluster
		remaining := data
		for {
			chunk := remaining
			if len(chunk) > sectorSize {
				chunk = chunk[:sectorSize]
			}
			padded := make([]byte, sectorSize)
			copy(padded, chunk)
			dataClusters = append(dataClusters, padded)
			nextCluster++
			remaining = remaining[len(chunk):]
			if len(remaining) == 0 {
				break
			}
		}

		files = append(files, fat32File{shortName: short, cluster: firstCluster, data: data})
	}

	if nextCluster > sectorSize/4 {
		return nil, fmt.Errorf("manifest needs %d clusters, more than a single FAT sector holds", nextCluster-rootDirCluster)
	}
	sectorsPerFAT := uint32(1)
	fatDataLBA := reservedSectors + fatCount*sectorsPerFAT
	rootDirLBA := fatDataLBA
	firstDataLBA := rootDirLBA + 1

	img := make([]byte, (uint64(firstDataLBA)+uint64(len(dataClusters)))*sectorSize)

	// Boot sector.
	boot := img[0:sectorSize]
	putLE16(boot, 11, sectorSize)
	boot[13] = sectorsPerCluster
	putLE16(boot, 14, reservedSectors)
	boot[16] = fatCount
	putLE32(boot, 36, sectorsPerFAT)
	putLE32(boot, 44, rootDirCluster)
	boot[510], boot[511] = 0x55, 0xAA

	// FAT table.
	fat := img[reservedSectors*sectorSize : (reservedSectors+sectorsPerFAT)*sectorSize]
	putLE32(fat, int(rootDirCluster)*4, endOfChain)
	cluster := uint32(rootDirCluster + 1)
	for _, f := range files {
		nClusters := (len(f.data) + sectorSize - 1) / sectorSize
		if nClusters == 0 {
			nClusters = 1
		}
		for i := 0; i < nClusters; i++ {
			if i == nClusters-1 {
				putLE32(fat, int(cluster)*4, endOfChain)
			} else {
				putLE32(fat, int(cluster)*4, cluster+1)
			}
			cluster++
		}
	}

	// Root directory: one 32-byte entry per file, followed by a zero
	// terminator byte that fat32.readDirEntries treats as end-of-directory.
	dir := img[rootDirLBA*sectorSize : (rootDirLBA+1)*sectorSize]
	off := 0
	for _, f := range files {
		copy(dir[off:off+11], f.shortName[:])
		dir[off+11] = 0x20 // archive attribute
		putLE16(dir, off+26, uint16(f.cluster))
		putLE32(dir, off+28, uint32(len(f.data)))
		off += 32
	}

	for i, chunk := range dataClusters {
		copy(img[(uint64(firstDataLBA)+uint64(i))*sectorSize:], chunk)
	}

	return img, nil
}

// to83 converts a manifest name into an 8.3 short name, uppercased and
// space-padded the way fat32.to83Display/to83Compare expect.
func to83(name string) ([11]byte, error) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}

	base, ext, _ := strings.Cut(name, ".")
	base, ext = strings.ToUpper(base), strings.ToUpper(ext)
	if len(base) > 8 || len(ext) > 3 {
		return out, fmt.Errorf("name %q does not fit the 8.3 short-name format", name)
	}
	copy(out[0:8], base)
	copy(out[8:11], ext)
	return out, nil
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
