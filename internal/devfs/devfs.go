// Package devfs implements the character-device filesystem mounted at
// /dev: zero, null, kmsg, random, urandom, plus a supplemented fb0 device
// backing the console (SPEC_FULL.md §11).
//
// Grounded on original_source/src/devfs.rs (DevFS, DEVFS_FILES, the
// FileSystem impl for open/read/write/remove/rename/close/list_dir).
package devfs

import (
	"fmt"

	"github.com/31core/rv39kernel/internal/kmsg"
	"github.com/31core/rv39kernel/internal/rng"
	"github.com/31core/rv39kernel/internal/vfs"
)

// deviceNames lists the character devices this filesystem exposes, in
// DEVFS_FILES' order, with fb0 appended as this kernel's one addition.
var deviceNames = []string{"zero", "null", "kmsg", "random", "urandom", "fb0"}

// FrameBuffer is the capability devfs needs from the console device to
// back /dev/fb0: a byte-oriented read of its current rendered contents.
// internal/console.Device implements this; devfs depends only on the
// interface so it never needs to import the gg/x-image rendering stack
// directly.
type FrameBuffer interface {
	ReadFrame(buf []byte) (int, error)
}

// DevFS is the devfs FileSystem implementation.
type DevFS struct {
	fds    map[uint64]string
	nextFD uint64
	rng    *rng.MT19937
	msgs   *kmsg.Ring
	fb     FrameBuffer
}

// New constructs a DevFS. rng and msgs back /dev/random,/dev/urandom and
// /dev/kmsg respectively; fb may be nil, in which case /dev/fb0 exists but
// every read on it fails.
func New(r *rng.MT19937, msgs *kmsg.Ring, fb FrameBuffer) *DevFS {
	return &DevFS{fds: make(map[uint64]string), rng: r, msgs: msgs, fb: fb}
}

var _ vfs.FileSystem = (*DevFS)(nil)

func (d *DevFS) Create(path []string) (vfs.File, error) {
	return vfs.File{}, fmt.Errorf("devfs: Create is not supported")
}

func (d *DevFS) Open(path []string) (vfs.File, error) {
	if len(path) == 0 {
		return vfs.File{}, fmt.Errorf("devfs: Open requires a device name")
	}
	for _, name := range deviceNames {
		if name == path[0] {
			d.nextFD++
			fd := d.nextFD
			d.fds[fd] = name
			return vfs.File{FD: fd, Type: vfs.CharDev}, nil
		}
	}
	return vfs.File{}, fmt.Errorf("devfs: no such device %q", path[0])
}

func (d *DevFS) Read(f vfs.File, buf []byte, offset uint64) (uint64, error) {
	name, ok := d.fds[f.FD]
	if !ok {
		return 0, fmt.Errorf("devfs: Read on unopened fd %d", f.FD)
	}

	switch name {
	case "zero":
		for i := range buf {
			buf[i] = 0
		}
		return uint64(len(buf)), nil
	case "kmsg":
		if d.msgs == nil {
			return 0, nil
		}
		return uint64(d.msgs.ReadAt(buf, offset)), nil
	case "random", "urandom":
		if d.rng == nil {
			return 0, fmt.Errorf("devfs: rng not configured")
		}
		d.rng.GenBytes(buf)
		return uint64(len(buf)), nil
	case "fb0":
		if d.fb == nil {
			return 0, fmt.Errorf("devfs: fb0 has no backing console")
		}
		n, err := d.fb.ReadFrame(buf)
		return uint64(n), err
	default:
		return 0, fmt.Errorf("devfs: %q is not readable", name)
	}
}

func (d *DevFS) Write(f vfs.File, buf []byte) (uint64, error) {
	name, ok := d.fds[f.FD]
	if !ok {
		return 0, fmt.Errorf("devfs: Write on unopened fd %d", f.FD)
	}

	switch name {
	case "null":
		return uint64(len(buf)), nil
	default:
		return 0, fmt.Errorf("devfs: %q is not writable", name)
	}
}

func (d *DevFS) Remove(path []string) error {
	return fmt.Errorf("devfs: Remove is not supported")
}

func (d *DevFS) Rename(src, dst []string) error {
	return fmt.Errorf("devfs: Rename is not supported")
}

func (d *DevFS) Close(f vfs.File) error {
	delete(d.fds, f.FD)
	return nil
}

func (d *DevFS) ListDir() ([]string, error) {
	out := make([]string, len(deviceNames))
	copy(out, deviceNames)
	return out, nil
}
