package ringstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/calvinalkan/ringstore/pkg/fs"
)

var errEmptyFile = fmt.Errorf("empty file: %w", io.ErrUnexpectedEOF)

// loadOutcome is the result of scanning every ring slot once.
type loadOutcome[T Object] struct {
	object T
	found  bool
	slot   int
	seq    uint64
	path   string

	// err is the first error of the scan, with anomalies folded in last.
	err *Error

	// errs holds every per-slot error in scan order (anomalies excluded).
	errs []*Error

	existing int
	valid    int
	zeroPath string
	dupPath  string
	cursor   int
}

// ok reports whether the outcome counts as a successful load.
func (o *loadOutcome[T]) ok(failOnAnomaly bool) bool {
	if !o.found {
		return false
	}

	return !failOnAnomaly || o.err == nil
}

// loader scans ring slots and arbitrates the authoritative copy.
type loader[T Object] struct {
	cfg   *Config[T]
	paths []string
}

// load scans all slots in ring order.
//
// Every slot is tried; a bad file never aborts the scan. The slot with the
// strictly greatest nonzero sequence number wins. A sequence number equal to
// the maximum seen so far and a zero sequence number are anomalies, even if a
// later slot holds a higher one. With no winner the object is a fresh
// default and the chosen slot is the last one, so the cursor wraps to 0.
func (l *loader[T]) load() loadOutcome[T] {
	out := loadOutcome[T]{slot: -1}

	var dupErr error

	for i, path := range l.paths {
		exists, obj, slotErr := l.readSlot(path, l.cfg.AutoCreateDir)
		if exists {
			out.existing++
		}

		if slotErr != nil {
			out.errs = append(out.errs, slotErr)
			if out.err == nil {
				out.err = slotErr
			}

			continue
		}

		if !exists {
			continue
		}

		seq := obj.SequenceNumber()

		switch {
		case seq == 0:
			out.zeroPath = path
		case seq == out.seq:
			out.valid++
			out.dupPath = path
			dupErr = fmt.Errorf("sequence number %d also in %s", seq, out.path)
		case seq > out.seq:
			out.valid++
			out.object = obj
			out.found = true
			out.slot = i
			out.seq = seq
			out.path = path
		default:
			// Older valid copy.
			out.valid++
		}
	}

	if out.err == nil && out.zeroPath != "" {
		out.err = newError(KindZeroSequence, out.zeroPath, nil)
	}

	if out.err == nil && out.dupPath != "" {
		out.err = newError(KindDuplicateSequence, out.dupPath, dupErr)
	}

	if !out.found {
		out.object = l.cfg.New()
		out.slot = len(l.paths) - 1

		if out.err == nil {
			if out.existing == 0 {
				out.err = newError(KindNoFilesFound, "", nil)
			} else {
				out.err = newError(KindNoUsableFile, "", fmt.Errorf("%d file(s) present, none usable", out.existing))
			}
		}
	}

	out.cursor = (out.slot + 1) % len(l.paths)

	return out
}

// readSlot reads and decodes one ring file.
//
// exists is false for an absent file, which is not an error. A directory
// failure skips the slot without counting the file as existing.
func (l *loader[T]) readSlot(path string, createDir bool) (bool, T, *Error) {
	var zero T

	dirErr := ensureDir(l.cfg.FS, filepath.Dir(path), createDir, l.cfg.DirPerm)
	if dirErr != nil {
		return false, zero, dirErr
	}

	exists, err := l.cfg.FS.Exists(path)
	if err != nil {
		return true, zero, newError(KindDecodeFailed, path, err)
	}

	if !exists {
		return false, zero, nil
	}

	data, err := readAll(l.cfg.FS, path, l.cfg.BufferSize)
	if err != nil {
		return true, zero, newError(KindDecodeFailed, path, err)
	}

	if len(data) == 0 {
		return true, zero, newError(KindDecodeFailed, path, errEmptyFile)
	}

	obj := l.cfg.New()

	err = l.cfg.Codec.Decode(bytes.NewReader(data), obj)
	if err != nil {
		if errors.Is(err, ErrTypeMismatch) {
			return true, zero, newError(KindTypeMismatch, path, err)
		}

		return true, zero, newError(KindDecodeFailed, path, err)
	}

	return true, obj, nil
}

// readAll reads path into a buffer pre-sized to sizeHint.
func readAll(fsys fs.FS, path string, sizeHint int) ([]byte, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}

	defer func() { _ = f.Close() }()

	var buf bytes.Buffer

	buf.Grow(sizeHint)

	_, err = buf.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	return buf.Bytes(), nil
}

// ensureDir checks that dir is a directory, creating it when create is set.
//
// A missing dir without create is not an error here: loads see absent files
// and saves fail when opening the file.
func ensureDir(fsys fs.FS, dir string, create bool, perm os.FileMode) *Error {
	info, err := fsys.Stat(dir)

	switch {
	case err == nil:
		if !info.IsDir() {
			return newError(KindPathIsNotADirectory, dir, nil)
		}

		return nil

	case errors.Is(err, iofs.ErrNotExist):
		if !create {
			return nil
		}

		mkErr := fsys.MkdirAll(dir, perm)
		if mkErr != nil {
			return newError(KindDirectoryCreateFailed, dir, mkErr)
		}

		return nil

	default:
		return newError(KindDirectoryCreateFailed, dir, err)
	}
}
