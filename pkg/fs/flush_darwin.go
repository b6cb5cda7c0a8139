//go:build darwin

package fs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// WriteThroughFlag is OR'ed into the open flags for write-through writes.
const WriteThroughFlag = unix.O_DSYNC

// PhysicalFlush reports whether [FlushToMedium] asks the device to commit its
// own write cache (as opposed to stopping at the OS page cache).
const PhysicalFlush = true

// FlushToMedium forces file data for f to the physical medium.
//
// fsync(2) on darwin only reaches the drive's cache; F_FULLFSYNC asks the
// drive to flush it. Filesystems that reject F_FULLFSYNC fall back to fsync.
func FlushToMedium(f File) error {
	fd := f.Fd()

	for {
		_, err := unix.FcntlInt(fd, unix.F_FULLFSYNC, 0)
		if err == nil {
			return nil
		}

		if errors.Is(err, unix.EINTR) {
			continue
		}

		if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EINVAL) {
			return f.Sync()
		}

		return err
	}
}
