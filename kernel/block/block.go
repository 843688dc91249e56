// Package block defines the block device contract that the fat32 driver
// reads through, plus a RAM-backed device used for a FAT32 disk image
// loaded as a boot module and by tests
// (original_source/include/kernel/fs/block_dev.h).
package block

import "github.com/achilleasa/uniker/kernel"

// SectorSize is the fixed logical sector size every device reports.
const SectorSize = 512

var errOutOfRange = &kernel.Error{Module: "block", Message: "sector out of range"}

// Device is the minimal synchronous interface a filesystem driver needs:
// read/write whole sectors by LBA.
type Device interface {
	ReadSectors(lba uint64, buf []byte) *kernel.Error
	WriteSectors(lba uint64, buf []byte) *kernel.Error
	SectorCount() uint64
}

// RAMDisk is a Device backed entirely by a Go byte slice; used for a FAT32
// disk image loaded as a boot module and by the fat32 and mkimage tests.
type RAMDisk struct {
	data []byte
}

// NewRAMDisk wraps data as a Device. len(data) must be a multiple of
// SectorSize.
func NewRAMDisk(data []byte) *RAMDisk {
	return &RAMDisk{data: data}
}

// SectorCount implements Device.
func (d *RAMDisk) SectorCount() uint64 { return uint64(len(d.data)) / SectorSize }

// ReadSectors implements Device.
func (d *RAMDisk) ReadSectors(lba uint64, buf []byte) *kernel.Error {
	n := uint64(len(buf)) / SectorSize
	if lba+n > d.SectorCount() {
		return errOutOfRange
	}
	copy(buf, d.data[lba*SectorSize:lba*SectorSize+uint64(len(buf))])
	return nil
}

// WriteSectors implements Device.
func (d *RAMDisk) WriteSectors(lba uint64, buf []byte) *kernel.Error {
	n := uint64(len(buf)) / SectorSize
	if lba+n > d.SectorCount() {
		return errOutOfRange
	}
	copy(d.data[lba*SectorSize:lba*SectorSize+uint64(len(buf))], buf)
	return nil
}
