// Package elf implements the minimal ELF64 loader needed to start a user
// process: header/class/machine validation and PT_LOAD segment mapping
// (spec.md §4.10).
package elf

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
)

const (
	magic0, magic1, magic2, magic3 = 0x7F, 'E', 'L', 'F'
	classELF64                     = 2
	dataLSB                        = 1
	typeExec                       = 2
	typeDyn                        = 3
	machineX86_64                  = 62

	ptLoad = 1

	pfX = 0x1
	pfW = 0x2
)

// UserStackTop is the fixed address the 64 KiB user stack ends at.
const UserStackTop = 0x7FFF_F000

// UserStackPages is the fixed size of the stack the user loader maps below
// UserStackTop.
const UserStackPages = 16

var (
	errTooShort    = &kernel.Error{Module: "elf", Message: "file too short to contain an ELF64 header"}
	errBadMagic    = &kernel.Error{Module: "elf", Message: "bad ELF magic"}
	errBadClass    = &kernel.Error{Module: "elf", Message: "not a 64-bit little-endian ELF"}
	errBadType     = &kernel.Error{Module: "elf", Message: "not an executable or shared object"}
	errBadMachine  = &kernel.Error{Module: "elf", Message: "not an x86_64 binary"}
	errOutOfMemory = &kernel.Error{Module: "elf", Message: "out of memory while loading segments"}
)

const ehdrSize = 64
const phdrSize = 56

type header struct {
	entry  uint64
	phoff  uint64
	phnum  uint16
	phsize uint16
}

// Validate checks the ELF magic, class, endianness, type and machine fields
// required to load data as an x86_64 process image.
func Validate(data []byte) *kernel.Error {
	if len(data) < ehdrSize {
		return errTooShort
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return errBadMagic
	}
	if data[4] != classELF64 || data[5] != dataLSB {
		return errBadClass
	}
	etype := le16(data, 16)
	if etype != typeExec && etype != typeDyn {
		return errBadType
	}
	if le16(data, 18) != machineX86_64 {
		return errBadMachine
	}
	return nil
}

func le16(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
func le64(b []byte, off int) uint64 {
	return uint64(le32(b, off)) | uint64(le32(b, off+4))<<32
}

func parseHeader(data []byte) header {
	return header{
		entry:  le64(data, 24),
		phoff:  le64(data, 32),
		phnum:  le16(data, 56),
		phsize: le16(data, 54),
	}
}

type progHeader struct {
	ptype, flags       uint32
	offset, vaddr      uint64
	filesz, memsz      uint64
}

func parsePhdr(data []byte, off int) progHeader {
	return progHeader{
		ptype:  le32(data, off),
		flags:  le32(data, off+4),
		offset: le64(data, off+8),
		vaddr:  le64(data, off+16),
		filesz: le64(data, off+32),
		memsz:  le64(data, off+40),
	}
}

// Load validates data and maps every PT_LOAD segment into the address space
// rooted at pml4. When user is true, mapped pages carry the USER flag and
// Load additionally maps a 64 KiB stack ending at UserStackTop. Returns the
// ELF entry point.
func Load(data []byte, pml4 uintptr, user bool) (uintptr, *kernel.Error) {
	if err := Validate(data); err != nil {
		return 0, err
	}
	hdr := parseHeader(data)

	for i := 0; i < int(hdr.phnum); i++ {
		off := int(hdr.phoff) + i*int(hdr.phsize)
		if off+phdrSize > len(data) {
			break
		}
		ph := parsePhdr(data, off)
		if ph.ptype != ptLoad || ph.memsz == 0 {
			continue
		}
		if err := loadSegment(data, ph, pml4, user); err != nil {
			return 0, err
		}
	}

	if user {
		if err := mapUserStack(pml4); err != nil {
			return 0, err
		}
	}

	return uintptr(hdr.entry), nil
}

func segmentFlags(ph progHeader, user bool) vmm.PageTableEntryFlag {
	flags := vmm.FlagPresent | vmm.FlagRW
	if user {
		flags |= vmm.FlagUser
	}
	if ph.flags&pfX == 0 {
		flags |= vmm.FlagNoExecute
	}
	return flags
}

func loadSegment(data []byte, ph progHeader, pml4 uintptr, user bool) *kernel.Error {
	pageSize := uintptr(pmm.PageSize)
	startPage := uintptr(ph.vaddr) &^ (pageSize - 1)
	endAddr := uintptr(ph.vaddr) + uintptr(ph.memsz)
	pages := (endAddr - startPage + pageSize - 1) / pageSize
	flags := segmentFlags(ph, user)

	intraOffset := uintptr(ph.vaddr) - startPage
	fileRemaining := int64(ph.filesz)
	fileOff := int64(ph.offset)

	for p := uintptr(0); p < pages; p++ {
		frame, err := pmm.AllocFrame()
		if err != nil {
			return errOutOfMemory
		}
		virt := startPage + p*pageSize
		if merr := vmm.MapPage(pml4, virt, frame.Address(), flags); merr != nil {
			return merr
		}

		pageVirt := boot.PhysToVirt(frame.Address())
		kernel.Memset(pageVirt, 0, pageSize)

		pageStart := uintptr(0)
		if p == 0 {
			pageStart = intraOffset
		}
		if fileRemaining <= 0 {
			continue
		}
		avail := pageSize - pageStart
		n := int64(avail)
		if n > fileRemaining {
			n = fileRemaining
		}
		if n <= 0 {
			continue
		}
		copyFileBytes(data, fileOff, pageVirt+pageStart, n)
		fileOff += n
		fileRemaining -= n
	}
	return nil
}

func copyFileBytes(data []byte, fileOff int64, dstVirt uintptr, n int64) {
	dst := unsafeByteSlice(dstVirt, int(n))
	copy(dst, data[fileOff:fileOff+n])
}

func mapUserStack(pml4 uintptr) *kernel.Error {
	pageSize := uintptr(pmm.PageSize)
	base := uintptr(UserStackTop) - UserStackPages*pageSize
	flags := vmm.FlagPresent | vmm.FlagRW | vmm.FlagUser | vmm.FlagNoExecute

	for p := uintptr(0); p < UserStackPages; p++ {
		frame, err := pmm.AllocFrame()
		if err != nil {
			return errOutOfMemory
		}
		virt := base + p*pageSize
		if merr := vmm.MapPage(pml4, virt, frame.Address(), flags); merr != nil {
			return merr
		}
		kernel.Memset(boot.PhysToVirt(frame.Address()), 0, pageSize)
	}
	return nil
}
