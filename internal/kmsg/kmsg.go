// Package kmsg implements the kernel message ring: an append-only log of
// diagnostic strings, readable through devfs's "kmsg" device and through
// the fatal-panic path's Sink hook.
//
// Grounded on original_source/src/kmsg.rs (KernelMessage, add_message) and
// the offset-based concatenated read devfs.rs's "kmsg" branch performs on
// it. The growable backing store is github.com/dsnet/golib/memfile's
// *memfile.File rather than a plain []byte buffer, so the ring genuinely
// exercises an io.ReaderAt/io.WriterAt-shaped store the way a hosted
// implementation would, instead of reinventing one. Every record is
// timestamped on the way in, per spec.md §4.7/§6's
// "[sssss.uuuuuu] <message>" record format.
package kmsg

import (
	"fmt"

	"github.com/dsnet/golib/memfile"
)

// Clock returns a monotonically non-decreasing microsecond timestamp used
// to stamp each record. The riscv64 build wires this to
// internal/riscv64.GetSysTime (CLINT ticks, treated as the kernel's one
// notion of "now" since it has no other clock); host tests supply a
// deterministic fake or use New, whose clock always reads 00000.000000.
type Clock func() uint64

// Ring is the kernel message log. The zero value is not ready to use;
// call New.
type Ring struct {
	file    *memfile.File
	lens    []int64
	total   int64
	handler func(msg string)
	clock   Clock
}

// New constructs an empty ring whose records are always stamped at time 0.
// Use NewWithClock to back it with a real time source.
func New() *Ring {
	return NewWithClock(func() uint64 { return 0 })
}

// NewWithClock constructs an empty ring, stamping every record with
// clock() at the time it is added.
func NewWithClock(clock Clock) *Ring {
	return &Ring{file: memfile.New(nil), clock: clock}
}

// SetOutputHandler installs a callback invoked with every formatted record
// as it is added, mirroring KernelMessage.output_handler. Passing nil
// disables it.
func (r *Ring) SetOutputHandler(h func(msg string)) {
	r.handler = h
}

// formatRecord renders msg in the kmsg wire format: "[sssss.uuuuuu] msg",
// timeUs split into whole seconds and the microsecond remainder, each
// left-padded to 5 and 6 digits.
func formatRecord(timeUs uint64, msg string) string {
	return fmt.Sprintf("[%05d.%06d] %s", timeUs/1_000_000, timeUs%1_000_000, msg)
}

// Add formats msg with the current time and appends it to the ring,
// invoking the output handler, if any, mirroring add_message.
func (r *Ring) Add(msg string) {
	record := formatRecord(r.clock(), msg)

	data := []byte(record)
	if len(data) > 0 {
		if _, err := r.file.WriteAt(data, r.total); err != nil {
			// The backing store only fails to grow on an allocation
			// failure; the kernel has nowhere to report that but the log
			// itself, so drop the message rather than recursing into Add.
			return
		}
	}
	r.total += int64(len(data))
	r.lens = append(r.lens, int64(len(data)))

	if r.handler != nil {
		r.handler(record)
	}
}

// Len returns the number of messages currently in the ring.
func (r *Ring) Len() int { return len(r.lens) }

// Size returns the total byte length of every record in the ring, the way
// a caller that wants only the tail (the console device) needs in order to
// pick a starting offset into ReadAt.
func (r *Ring) Size() uint64 { return uint64(r.total) }

// ReadAt reads from the logical concatenation of every message in the
// ring, honoring offset the way devfs's "kmsg" read does: offset is
// consumed message by message until it lands inside one, then bytes are
// copied from there onward until buf is full or the ring is exhausted. It
// returns the number of bytes copied.
func (r *Ring) ReadAt(buf []byte, offset uint64) int {
	var msgStart int64
	bufOff := 0

	for _, msgLen := range r.lens {
		if bufOff == len(buf) {
			break
		}

		if offset >= uint64(msgLen) {
			offset -= uint64(msgLen)
		} else {
			remaining := msgLen - int64(offset)
			readSize := int64(len(buf) - bufOff)
			if readSize > remaining {
				readSize = remaining
			}
			n, _ := r.file.ReadAt(buf[bufOff:int64(bufOff)+readSize], msgStart+int64(offset))
			bufOff += n
			offset = 0
		}
		msgStart += msgLen
	}

	return bufOff
}
