package elf

import (
	"testing"
	"unsafe"

	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
)

// setupFakePhysMemory mirrors vmm's own test helper: a real Go slice stands
// in for physical RAM so AllocFrame/MapPage run their real bookkeeping
// without live hardware.
func setupFakePhysMemory(t *testing.T, frames uint64) {
	t.Helper()
	backing := make([]byte, frames*uint64(pmm.PageSize))
	h := &boot.Handoff{
		HHDMOffset: uintptr(unsafe.Pointer(&backing[0])),
		MemoryMap: []boot.MemoryMapEntry{
			{Base: 0, Length: frames * uint64(pmm.PageSize), Type: boot.MemUsable},
		},
	}
	boot.SetHandoff(h)
	if err := pmm.Init(); err != nil {
		t.Fatalf("pmm.Init: %v", err)
	}
	vmm.SetFrameAllocator(pmm.AllocFrame)
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

func putLE64(b []byte, off int, v uint64) {
	putLE32(b, off, uint32(v))
	putLE32(b, off+4, uint32(v>>32))
}

const codeVaddr = 0x400000

var code = []byte("CODECODECODECODE") // 16 bytes of segment content

// buildELF assembles a minimal ELF64 executable with one PT_LOAD segment
// (readable+executable) whose file contents are `code` and whose memsz
// covers a full page.
func buildELF() []byte {
	const phoff = ehdrSize
	data := make([]byte, phoff+phdrSize+len(code))

	data[0], data[1], data[2], data[3] = magic0, magic1, magic2, magic3
	data[4] = classELF64
	data[5] = dataLSB
	putLE16(data, 16, typeExec)
	putLE16(data, 18, machineX86_64)
	putLE64(data, 24, codeVaddr) // e_entry
	putLE64(data, 32, phoff)     // e_phoff
	putLE16(data, 54, phdrSize)  // e_phentsize
	putLE16(data, 56, 1)         // e_phnum

	ph := data[phoff : phoff+phdrSize]
	putLE32(ph, 0, ptLoad)
	putLE32(ph, 4, pfX) // read+exec, not write
	putLE64(ph, 8, uint64(phoff+phdrSize))
	putLE64(ph, 16, codeVaddr)
	putLE64(ph, 32, uint64(len(code)))
	putLE64(ph, 40, uint64(pmm.PageSize))

	copy(data[phoff+phdrSize:], code)
	return data
}

func TestValidateAcceptsWellFormedHeader(t *testing.T) {
	if err := Validate(buildELF()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsTooShort(t *testing.T) {
	if err := Validate(make([]byte, 10)); err != errTooShort {
		t.Fatalf("expected errTooShort, got %v", err)
	}
}

func TestValidateRejectsBadMagic(t *testing.T) {
	data := buildELF()
	data[0] = 0
	if err := Validate(data); err != errBadMagic {
		t.Fatalf("expected errBadMagic, got %v", err)
	}
}

func TestValidateRejectsWrongMachine(t *testing.T) {
	data := buildELF()
	putLE16(data, 18, 3) // EM_386
	if err := Validate(data); err != errBadMachine {
		t.Fatalf("expected errBadMachine, got %v", err)
	}
}

func TestLoadMapsSegmentAndReturnsEntry(t *testing.T) {
	setupFakePhysMemory(t, 64)
	pml4, err := vmm.CreateAddressSpace()
	if err != nil {
		t.Fatalf("CreateAddressSpace: %v", err)
	}

	entry, lerr := Load(buildELF(), pml4, true)
	if lerr != nil {
		t.Fatalf("Load: %v", lerr)
	}
	if entry != codeVaddr {
		t.Fatalf("expected entry %#x, got %#x", uintptr(codeVaddr), entry)
	}

	phys, terr := vmm.Translate(pml4, codeVaddr)
	if terr != nil {
		t.Fatalf("Translate: %v", terr)
	}
	mapped := unsafe.Slice((*byte)(unsafe.Pointer(boot.PhysToVirt(phys))), pmm.PageSize)
	if string(mapped[:len(code)]) != string(code) {
		t.Fatalf("expected segment bytes to be copied in, got %q", mapped[:len(code)])
	}
	for _, b := range mapped[len(code):] {
		if b != 0 {
			t.Fatalf("expected the rest of the page to be zero-filled")
		}
	}
}

func TestLoadMapsUserStackBelowStackTop(t *testing.T) {
	setupFakePhysMemory(t, 64)
	pml4, err := vmm.CreateAddressSpace()
	if err != nil {
		t.Fatalf("CreateAddressSpace: %v", err)
	}

	if _, lerr := Load(buildELF(), pml4, true); lerr != nil {
		t.Fatalf("Load: %v", lerr)
	}

	if _, terr := vmm.Translate(pml4, UserStackTop-1); terr != nil {
		t.Fatalf("expected the top of the user stack to be mapped: %v", terr)
	}
	if _, terr := vmm.Translate(pml4, UserStackTop-UserStackPages*pmm.PageSize); terr != nil {
		t.Fatalf("expected the bottom of the user stack to be mapped: %v", terr)
	}
}
