// Package kmain wires every subsystem into the boot sequence spec.md §2
// describes. The teacher's own kernel/kmain stops right after VMM/heap
// bring-up; this package extends that same flat, linear init style (a
// sequence of X.Init() calls with a kfmt progress line and a panic on the
// first unrecoverable error) through VFS mounts, the process model,
// interrupts and the syscall gate.
package kmain

import (
	"unsafe"

	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/block"
	"github.com/achilleasa/uniker/kernel/gate"
	"github.com/achilleasa/uniker/kernel/hal"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/irq"
	"github.com/achilleasa/uniker/kernel/kfmt"
	"github.com/achilleasa/uniker/kernel/mm/pmm"
	"github.com/achilleasa/uniker/kernel/mm/vmm"
	"github.com/achilleasa/uniker/kernel/proc"
	"github.com/achilleasa/uniker/kernel/syscall"
	"github.com/achilleasa/uniker/kernel/vfs"
	"github.com/achilleasa/uniker/kernel/vfs/fat32"
	"github.com/achilleasa/uniker/kernel/vfs/unifs"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Run performs the full boot sequence described by spec.md §2 and never
// returns. It installs h via boot.SetHandoff before anything else runs.
// The heap (kernel/mm/heap) needs no explicit Init call:
// it bootstraps its bucket sizes in its own package init.
//
//go:noinline
func Run(h *boot.Handoff) {
	boot.SetHandoff(h)

	hal.Init()
	kfmt.Printf("booting\n")

	if err := pmm.Init(); err != nil {
		kfmt.Panic(err)
		return
	}
	kfmt.Printf("pmm: ready\n")

	if err := vmm.Init(); err != nil {
		kfmt.Panic(err)
		return
	}
	kfmt.Printf("vmm: ready\n")

	mountFilesystems()
	kfmt.Printf("vfs: mounted\n")

	proc.Init()
	kfmt.Printf("proc: ready\n")

	gate.Init()
	irq.Init()
	syscall.Init()
	kfmt.Printf("interrupts: ready\n")

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}

// mountFilesystems attaches the boot ROM at / and, when a second boot
// module is present, a FAT32 volume at /mnt (spec.md §6: module[0] is the
// unifs image; a second module is an optional backing disk).
func mountFilesystems() {
	rom := boot.BootModule(0)
	if rom == nil {
		kfmt.Panic(&kernel.Error{Module: "kmain", Message: "no boot ROM module supplied"})
		return
	}
	romBytes := moduleBytes(rom)
	_, root, err := unifs.Mount(romBytes)
	if err != nil {
		kfmt.Panic(err)
		return
	}
	vfs.Mount("/", root)

	if disk := boot.BootModule(1); disk != nil {
		dev := block.NewRAMDisk(moduleBytes(disk))
		_, diskRoot, err := fat32.Mount(dev)
		if err != nil {
			kfmt.Panic(err)
			return
		}
		vfs.Mount("/mnt", diskRoot)
	}
}

// moduleBytes reads a boot module's contents through the HHDM alias; the
// bootloader loads every module into usable RAM before handoff, so no copy
// or block I/O is required.
var moduleBytes = func(m *boot.Module) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m.Address)), m.Size)
}
