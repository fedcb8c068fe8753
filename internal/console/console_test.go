package console_test

import (
	"testing"

	"github.com/31core/rv39kernel/internal/console"
	"github.com/31core/rv39kernel/internal/kmsg"
)

func TestLayoutLinesWrapsLongLines(t *testing.T) {
	lines := console.LayoutLines([]string{"abcdefgh"}, 4, 10)
	want := []string{"abcd", "efgh"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLayoutLinesTruncatesToRows(t *testing.T) {
	lines := console.LayoutLines([]string{"a", "b", "c", "d"}, 10, 2)
	if len(lines) != 2 {
		t.Fatalf("len = %d, want 2", len(lines))
	}
	if lines[0] != "c" || lines[1] != "d" {
		t.Fatalf("lines = %v, want oldest dropped", lines)
	}
}

func TestLayoutLinesInvalidGrid(t *testing.T) {
	if got := console.LayoutLines([]string{"x"}, 0, 5); got != nil {
		t.Fatalf("expected nil for cols=0, got %v", got)
	}
}

func TestDeviceReadFrameReturnsRGBABytes(t *testing.T) {
	ring := kmsg.New()
	ring.Add("kernel boot complete")

	d := console.NewDevice(ring, 80, 24)

	// 80 cols x 24 rows at the 7x13 glyph cell size, 4 bytes per RGBA pixel.
	want := 80 * 7 * 24 * 13 * 4
	buf := make([]byte, want)
	n, err := d.ReadFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != want {
		t.Fatalf("n = %d, want %d", n, want)
	}

	// The background is opaque black, so every pixel's alpha byte is 0xff
	// even where no glyph was drawn: the frame is never all-zero.
	allZero := true
	for _, b := range buf {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatal("expected non-zero RGBA frame bytes")
	}
}

func TestDeviceReadFrameAgainAfterNewMessage(t *testing.T) {
	ring := kmsg.New()
	ring.Add("one")

	d := console.NewDevice(ring, 10, 2)
	buf := make([]byte, 10*7*2*13*4)

	if _, err := d.ReadFrame(buf); err != nil {
		t.Fatal(err)
	}
	ring.Add("two")
	if _, err := d.ReadFrame(buf); err != nil {
		t.Fatal(err)
	}
}
