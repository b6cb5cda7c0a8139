package ringstore

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/calvinalkan/ringstore/pkg/fs"
)

var errSequenceExhausted = errors.New("sequence number exhausted")

// save writes obj to the slot under the cursor and advances the cursor
// according to the advance rule. It updates object, lastSeq and lastPath but
// never lastErr; callers decide what to record.
func (s *Storage[T]) save(obj T) Result {
	start := time.Now()

	var nullErr *Error

	if isNil(obj) {
		nullErr = newError(KindNullObject, "", nil)
		obj = s.cfg.New()
	}

	s.object = obj

	path := s.paths[s.cursor]

	base := max(s.lastSeq, obj.SequenceNumber())
	if base == math.MaxUint64 {
		s.advanceAfterSave(false)

		res := Result{Err: firstErr(nullErr, newError(KindWriteFailed, path, errSequenceExhausted)), Path: path}
		s.observeSave(start, res)

		return res
	}

	// Assigned before encoding so memory and disk agree even if the write fails.
	next := base + 1
	obj.SetSequenceNumber(next)
	s.lastSeq = next

	writeErr := s.writeSlot(path, obj)
	wrote := writeErr == nil

	if wrote {
		s.lastPath = path
	}

	s.advanceAfterSave(wrote)

	res := Result{
		OK:       wrote && nullErr == nil,
		Path:     path,
		Sequence: next,
		Err:      firstErr(nullErr, writeErr),
	}

	s.observeSave(start, res)

	return res
}

func (s *Storage[T]) observeSave(start time.Time, res Result) {
	saveDuration.WithLabelValues(s.cfg.BaseName, s.cfg.Durability.String()).Observe(time.Since(start).Seconds())
	saveTotal.WithLabelValues(s.cfg.BaseName, resultLabel(res.OK)).Inc()
}

// writeSlot encodes obj and writes it to path under the configured tier.
//
// The object is encoded before the file is opened, so an encoder failure
// never truncates the slot.
func (s *Storage[T]) writeSlot(path string, obj T) *Error {
	dirErr := ensureDir(s.cfg.FS, filepath.Dir(path), s.cfg.AutoCreateDir, s.cfg.DirPerm)
	if dirErr != nil {
		return dirErr
	}

	var buf bytes.Buffer

	buf.Grow(s.cfg.BufferSize)

	err := s.cfg.Codec.Encode(&buf, obj)
	if err != nil {
		return newError(KindWriteFailed, path, fmt.Errorf("encode: %w", err))
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if s.cfg.Durability >= WriteThrough {
		flag |= fs.WriteThroughFlag
	}

	f, err := s.cfg.FS.OpenFile(path, flag, s.cfg.Perm)
	if err != nil {
		return newError(KindWriteFailed, path, err)
	}

	_, err = f.Write(buf.Bytes())
	if err != nil {
		return newError(KindWriteFailed, path, errors.Join(err, closeFile(f)))
	}

	if s.cfg.Durability == CommitToDisk {
		err = s.cfg.Flush(f)
		if err != nil {
			return newError(KindWriteFailed, path, errors.Join(fmt.Errorf("flush: %w", err), closeFile(f)))
		}
	}

	err = closeFile(f)
	if err != nil {
		return newError(KindWriteFailed, path, err)
	}

	return nil
}

// advanceAfterSave applies the advance rule after a write attempt.
func (s *Storage[T]) advanceAfterSave(wrote bool) {
	switch s.cfg.Advance {
	case AdvanceAlways:
		s.advance()

	case AdvanceOnSuccessOnly:
		if wrote {
			s.advance()
		}

	case AdvanceOnSuccessOrNFailures:
		if wrote {
			s.advance()

			return
		}

		s.failures++
		if s.failures >= s.cfg.FailureThreshold {
			s.advance()
		}
	}
}

// advance moves the cursor one slot forward and resets the failure counter.
func (s *Storage[T]) advance() {
	s.cursor = (s.cursor + 1) % len(s.paths)
	s.failures = 0
}

func closeFile(f fs.File) error {
	err := f.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

// firstErr returns the first non-nil error as an error interface value.
func firstErr(errs ...*Error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	return nil
}

// isNil reports whether v is a nil interface or a nil pointer-like value.
func isNil[T Object](v T) bool {
	if any(v) == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
