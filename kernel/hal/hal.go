// Package hal is the hardware abstraction layer boundary the core consumes:
// it turns the boot handoff's framebuffer into a minimal pixel console good
// enough for early kernel logging and the write(2) syscall's STDOUT/STDERR
// rendering. Actual terminal emulation (glyph rendering, ANSI escapes,
// scrollback, shell integration) is an external collaborator per spec.md §1
// ("Terminal rendering... GUI/window compositor") and is intentionally not
// implemented here: Console renders each byte as a fixed-size cell so that a
// cursor-addressed stream of writes has observable, testable effects
// (advance, wrap, scroll) without pretending to be a real terminal.
package hal

import (
	"github.com/achilleasa/uniker/kernel"
	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/kfmt"
)

const (
	cellWidth  = 8
	cellHeight = 8
)

// Color is a 32-bit RGBA pixel value.
type Color uint32

const (
	colorBlack = Color(0x00000000)
	colorGrey  = Color(0x00AAAAAA)
	colorRed   = Color(0x00FF0000)
)

// Console renders byte output onto a linear pixel framebuffer at a fixed
// cell pitch, tracking a text cursor the way a character-cell terminal would.
type Console struct {
	fb            boot.FramebufferInfo
	cols, rows    uint32
	cursorCol     uint32
	cursorRow     uint32
	attached      bool
}

// ActiveConsole is the console syscalls and early logging write through.
var ActiveConsole Console

// Init attaches the console to the framebuffer reported by the bootloader.
// If no framebuffer is available the console stays detached and all writes
// are absorbed (kfmt keeps buffering into its ring buffer).
func Init() {
	fb := boot.PrimaryFramebuffer()
	if fb == nil {
		return
	}

	ActiveConsole.fb = *fb
	ActiveConsole.cols = fb.Width / cellWidth
	ActiveConsole.rows = fb.Height / cellHeight
	ActiveConsole.attached = true
	ActiveConsole.Clear()

	kfmt.SetSink(&ActiveConsole)
}

// Clear fills the framebuffer with black and homes the cursor.
func (c *Console) Clear() {
	c.fill(colorBlack)
	c.cursorCol, c.cursorRow = 0, 0
}

// PanicScreen freezes the framebuffer to a red field, per spec.md §7 tier 1
// ("freeze the framebuffer to a red field"). It does not clear the cursor so
// that any debug text written afterwards continues from a known position.
func (c *Console) PanicScreen() {
	if !c.attached {
		return
	}
	c.fill(colorRed)
}

// Write implements io.Writer. Bytes are rendered as opaque cells; '\n' moves
// to the next line. Scrolling is a single memmove of the framebuffer rows.
func (c *Console) Write(p []byte) (int, error) {
	if !c.attached {
		return len(p), nil
	}

	for _, b := range p {
		if b == '\n' {
			c.newline()
			continue
		}
		c.putCell(b)
		c.cursorCol++
		if c.cursorCol >= c.cols {
			c.newline()
		}
	}
	return len(p), nil
}

func (c *Console) newline() {
	c.cursorCol = 0
	c.cursorRow++
	if c.cursorRow >= c.rows {
		c.scroll()
		c.cursorRow = c.rows - 1
	}
}

// putCell paints a cellWidth x cellHeight block at the cursor; a space
// (' ') paints black, anything else paints grey. This is the "render to
// framebuffer via process cursor" mechanism referenced by spec.md §4.6 for
// STDOUT/STDERR, deliberately stopping short of glyph rendering.
func (c *Console) putCell(b byte) {
	color := colorGrey
	if b == ' ' {
		color = colorBlack
	}

	originX := c.cursorCol * cellWidth
	originY := c.cursorRow * cellHeight
	for y := uint32(0); y < cellHeight; y++ {
		rowAddr := c.fb.Address + uintptr((originY+y)*c.fb.Pitch) + uintptr(originX*4)
		for x := uint32(0); x < cellWidth; x++ {
			writePixel(rowAddr+uintptr(x*4), color)
		}
	}
}

func (c *Console) fill(color Color) {
	for y := uint32(0); y < c.fb.Height; y++ {
		rowAddr := c.fb.Address + uintptr(y*c.fb.Pitch)
		for x := uint32(0); x < c.fb.Width; x++ {
			writePixel(rowAddr+uintptr(x*4), color)
		}
	}
}

// scroll shifts every row up by one cell row and clears the last row.
func (c *Console) scroll() {
	rowBytes := uintptr(cellHeight) * uintptr(c.fb.Pitch)
	total := uintptr(c.fb.Height) * uintptr(c.fb.Pitch)
	kernel.Memcopy(c.fb.Address+rowBytes, c.fb.Address, total-rowBytes)

	lastRow := c.fb.Address + total - rowBytes
	for y := uint32(0); y < cellHeight; y++ {
		rowAddr := lastRow + uintptr(y*c.fb.Pitch)
		for x := uint32(0); x < c.fb.Width; x++ {
			writePixel(rowAddr+uintptr(x*4), colorBlack)
		}
	}
}
