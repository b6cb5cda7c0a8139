//go:build !linux && !darwin

package fs

import "os"

// WriteThroughFlag is OR'ed into the open flags for write-through writes.
const WriteThroughFlag = os.O_SYNC

// PhysicalFlush is false here: [FlushToMedium] falls back to [File.Sync],
// which is not guaranteed to flush the device cache on every platform. The
// commit-to-disk tier therefore degrades to write-through.
const PhysicalFlush = false

// FlushToMedium calls [File.Sync]. See [PhysicalFlush].
func FlushToMedium(f File) error {
	return f.Sync()
}
