// Command kernel is the freestanding entry point linked into the bootable
// image. It is intentionally thin: decoding the raw Limine request/response
// structures placed in the .limine_requests linker section is bootloader-ABI
// plumbing out of scope for this repository (spec.md §1), so main's only job
// is to assemble the boot.Handoff the rest of the kernel expects and hand
// off to kmain.Run.
//
// main is declared the way the teacher's own boot.go/stub.go are: as a
// trampoline the Go compiler cannot optimize away, since nothing else in
// the generated object file references kmain.Run directly.
package main

import (
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/kmain"
)

// limineBaseRevision is placed in the .limine_requests section by the
// linker script; its value pins the protocol revision this kernel expects
// (boot.BaseRevision). The bootloader overwrites the third word with a
// non-zero value once it has reviewed and accepted the request.
var limineBaseRevision = [3]uint64{0xf9562b2d5c95a6c8, 0x6a7b384944536bdc, boot.BaseRevision}

// handoff is built by walking the bootloader's response pointers. That walk
// is asm/linker-script territory maintained alongside the boot sector, not
// Go source; this trampoline assumes it has already populated handoff by
// the time main runs.
var handoff boot.Handoff

func main() {
	kmain.Run(&handoff)
}
