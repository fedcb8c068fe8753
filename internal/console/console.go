// Package console backs /dev/fb0: a simple text console that tails the
// kernel message ring and rasterizes it into an RGBA frame. Layout
// (wrapping/truncating lines to a fixed grid) and rasterizing the frame
// are both portable and host-testable, using github.com/fogleman/gg and
// golang.org/x/image/font/basicfont — the two graphics dependencies the
// teacher's own framebuffer/text code (mazboot/golang/main/gg_circle_qemu.go,
// framebuffer_text.go) pulls in. Only blitting the finished frame onto the
// real hardware framebuffer is architecture-specific; that lives in
// render_riscv64.go, gated behind //go:build riscv64.
//
// This is a supplemented component: spec.md's distillation has no console
// device, but SPEC_FULL.md §11 adds one specifically to give the teacher's
// graphics stack a genuine home rather than dropping it unexercised.
package console

import (
	"image"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/31core/rv39kernel/internal/kmsg"
	"github.com/31core/rv39kernel/internal/slab"
)

const (
	glyphWidth  = 7
	glyphHeight = 13
)

// LayoutLines lays out the tail of msgs onto a cols x rows character grid,
// one message per line, wrapping a message onto successive rows if it is
// wider than cols and dropping the oldest messages once rows is full. It
// is the pure part of rendering: no pixels, no fonts, just text shaping,
// so it can be exercised directly under go test.
func LayoutLines(msgs []string, cols, rows int) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}

	var wrapped []string
	for _, msg := range msgs {
		wrapped = append(wrapped, wrap(msg, cols)...)
	}

	if len(wrapped) > rows {
		wrapped = wrapped[len(wrapped)-rows:]
	}
	return wrapped
}

// wrap splits msg into chunks no wider than cols characters.
func wrap(msg string, cols int) []string {
	if msg == "" {
		return []string{""}
	}
	var out []string
	for len(msg) > cols {
		out = append(out, msg[:cols])
		msg = msg[cols:]
	}
	out = append(out, msg)
	return out
}

// Device is the console device backing /dev/fb0. ReadFrame (the method
// devfs.FrameBuffer requires) returns the current rendered frame's raw
// RGBA bytes — the same pixels the riscv64 build additionally blits onto
// the real framebuffer via Render.
type Device struct {
	ring *kmsg.Ring
	cols int
	rows int

	// frameAddr/frameLen/haveFrame track the slab-backed pixel buffer
	// renderRGBA reuses across calls, so repeated renders don't churn the
	// allocator.
	frameAddr uintptr
	frameLen  int
	haveFrame bool
}

// NewDevice constructs a console device tailing ring, laid out on a
// cols x rows grid.
func NewDevice(ring *kmsg.Ring, cols, rows int) *Device {
	return &Device{ring: ring, cols: cols, rows: rows}
}

// ReadFrame copies the current rendered frame's RGBA bytes into buf,
// returning how much was written.
func (d *Device) ReadFrame(buf []byte) (int, error) {
	img := d.renderRGBA()
	return copy(buf, img.Pix), nil
}

// currentLines re-lays-out the tail of the ring's messages. Since
// kmsg.Ring has no bulk "all messages" accessor by design (only the
// offset-based ReadAt devfs needs), it reads the last scratchSize bytes of
// the ring through ReadAt into a scratch buffer — enough text to fill the
// console grid many times over — rather than always starting at offset 0,
// which would pin the console on the oldest messages once the ring grows
// past one scratch buffer's worth.
func (d *Device) currentLines() []string {
	const scratchSize = 4096

	var start uint64
	if total := d.ring.Size(); total > scratchSize {
		start = total - scratchSize
	}

	buf := make([]byte, scratchSize)
	n := d.ring.ReadAt(buf, start)
	text := string(buf[:n])
	if text == "" {
		return nil
	}
	return LayoutLines(strings.Split(text, "\n"), d.cols, d.rows)
}

// frameBuf returns an n-byte buffer to rasterize the frame into, backed by
// the process-wide slab singleton (internal/slab.Default) when one has
// been installed — /dev/fb0's pixel bytes live in the kernel's own general
// allocator rather than the host GC heap, the way C2's façade is meant to
// be used. Host tests that never call slab.Init fall back to a plain Go
// allocation.
func (d *Device) frameBuf(n int) []byte {
	m := slab.Default()
	if m == nil {
		return make([]byte, n)
	}

	if d.haveFrame && d.frameLen == n {
		if buf, err := m.Bytes(d.frameAddr, n); err == nil {
			return buf
		}
	}
	if d.haveFrame {
		m.Free(d.frameAddr, uint64(d.frameLen))
		d.haveFrame = false
	}

	addr, err := m.Alloc(uint64(n))
	if err != nil {
		return make([]byte, n)
	}
	buf, err := m.Bytes(addr, n)
	if err != nil {
		return make([]byte, n)
	}
	d.frameAddr, d.frameLen, d.haveFrame = addr, n, true
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// renderRGBA rasterizes the current line layout into an RGBA image, using
// basicfont's built-in 7x13 bitmap face (no font asset is shipped, so
// Face7x13 is the one face that draws without one — see DESIGN.md's
// dropped-dependency note on golang/freetype).
func (d *Device) renderRGBA() *image.RGBA {
	lines := d.currentLines()

	w := d.cols * glyphWidth
	h := d.rows * glyphHeight
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	img := &image.RGBA{
		Pix:    d.frameBuf(w * h * 4),
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}

	dc := gg.NewContextForRGBA(img)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.White)

	for i, line := range lines {
		dc.DrawString(line, 0, float64((i+1)*glyphHeight))
	}

	return img
}
