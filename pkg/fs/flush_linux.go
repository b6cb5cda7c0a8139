//go:build linux

package fs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// WriteThroughFlag is OR'ed into the open flags for write-through writes.
// O_DSYNC makes every write return only after data reaches the device.
const WriteThroughFlag = unix.O_DSYNC

// PhysicalFlush reports whether [FlushToMedium] asks the device to commit its
// own write cache (as opposed to stopping at the OS page cache).
const PhysicalFlush = true

// FlushToMedium forces file data for f to stable storage using fdatasync(2).
// Blocks until the device acknowledges.
func FlushToMedium(f File) error {
	fd := int(f.Fd())

	for {
		err := unix.Fdatasync(fd)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
