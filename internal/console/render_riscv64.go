//go:build riscv64

package console

import "unsafe"

// Render blits the current frame (the same RGBA bytes ReadFrame serves)
// onto the framebuffer at fbAddr as 32-bit BGRX pixels, mirroring the
// teacher's WritePixel/flush split in
// framebuffer_text.go/gg_circle_qemu.go.
func (d *Device) Render(fbAddr uintptr, pitch uint32) {
	img := d.renderRGBA()
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixel := uint32(b>>8) | uint32(g>>8)<<8 | uint32(r>>8)<<16
			off := uintptr(y)*uintptr(pitch) + uintptr(x)*4
			*(*uint32)(unsafe.Pointer(fbAddr + off)) = pixel
		}
	}
}
