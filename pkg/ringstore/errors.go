package ringstore

import (
	"errors"
	"strings"
)

// Sentinel errors returned by ringstore operations.
//
// Every failure reported by [Storage] is an [*Error] whose Kind maps to one of
// these sentinels, so callers use [errors.Is]:
//
//	if errors.Is(st.LastError(), ringstore.ErrNoFilesFound) {
//	    // first run, nothing persisted yet
//	}
var (
	// ErrInvalidConfig indicates [New] rejected the configuration.
	//
	// This is a programming error.
	ErrInvalidConfig = errors.New("ringstore: invalid config")

	// ErrDirectoryCreateFailed indicates the ring directory could not be created
	// or inspected.
	ErrDirectoryCreateFailed = errors.New("ringstore: directory create failed")

	// ErrPathIsNotADirectory indicates the ring directory path exists but is
	// not a directory.
	ErrPathIsNotADirectory = errors.New("ringstore: path is not a directory")

	// ErrDecodeFailed indicates a ring file exists but could not be read or decoded.
	ErrDecodeFailed = errors.New("ringstore: decode failed")

	// ErrTypeMismatch indicates a ring file decoded into the wrong shape.
	//
	// Codecs wrap this sentinel to have a failure classified as a type
	// mismatch instead of a generic decode failure.
	ErrTypeMismatch = errors.New("ringstore: type mismatch")

	// ErrZeroSequence indicates a ring file decoded with sequence number 0,
	// which is reserved for "never validly saved".
	ErrZeroSequence = errors.New("ringstore: zero sequence number")

	// ErrDuplicateSequence indicates two ring files carry the same highest
	// sequence number, so the authoritative copy is ambiguous.
	ErrDuplicateSequence = errors.New("ringstore: duplicate sequence number")

	// ErrNoFilesFound indicates none of the ring files exist.
	ErrNoFilesFound = errors.New("ringstore: no files found")

	// ErrNoUsableFile indicates ring files exist but none could be used.
	ErrNoUsableFile = errors.New("ringstore: no usable file found")

	// ErrNullObject indicates Save was called with a nil object. A fresh
	// default object is written instead.
	ErrNullObject = errors.New("ringstore: nil object on save")

	// ErrWriteFailed indicates the ring file could not be opened, encoded,
	// written, flushed or closed.
	ErrWriteFailed = errors.New("ringstore: write failed")
)

// Kind classifies an [*Error].
type Kind int

// Error kinds. The zero value is not a valid kind.
const (
	KindDirectoryCreateFailed Kind = iota + 1
	KindPathIsNotADirectory
	KindDecodeFailed
	KindTypeMismatch
	KindZeroSequence
	KindDuplicateSequence
	KindNoFilesFound
	KindNoUsableFile
	KindNullObject
	KindWriteFailed
)

var kindNames = map[Kind]string{
	KindDirectoryCreateFailed: "directory_create_failed",
	KindPathIsNotADirectory:   "path_is_not_a_directory",
	KindDecodeFailed:          "decode_failed",
	KindTypeMismatch:          "type_mismatch",
	KindZeroSequence:          "zero_sequence",
	KindDuplicateSequence:     "duplicate_sequence",
	KindNoFilesFound:          "no_files_found",
	KindNoUsableFile:          "no_usable_file",
	KindNullObject:            "null_object",
	KindWriteFailed:           "write_failed",
}

var kindSentinels = map[Kind]error{
	KindDirectoryCreateFailed: ErrDirectoryCreateFailed,
	KindPathIsNotADirectory:   ErrPathIsNotADirectory,
	KindDecodeFailed:          ErrDecodeFailed,
	KindTypeMismatch:          ErrTypeMismatch,
	KindZeroSequence:          ErrZeroSequence,
	KindDuplicateSequence:     ErrDuplicateSequence,
	KindNoFilesFound:          ErrNoFilesFound,
	KindNoUsableFile:          ErrNoUsableFile,
	KindNullObject:            ErrNullObject,
	KindWriteFailed:           ErrWriteFailed,
}

// String returns the snake_case kind name, e.g. "decode_failed".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Error is the classified error type reported by all [Storage] operations.
//
// It formats as "<cause> (kind=X path=Y)":
//
//	ringstore: decode failed: unexpected end of JSON input (kind=decode_failed path=/var/lib/app/stateb.json)
//
// Use [errors.As] to extract the slot path:
//
//	var rErr *ringstore.Error
//	if errors.As(err, &rErr) {
//	    fmt.Println("bad file:", rErr.Path)
//	}
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Path is the ring file (or directory) involved. Empty for ring-wide
	// failures such as [KindNoFilesFound].
	Path string

	// Err is the underlying cause. May be nil.
	Err error
}

// Error formats as "<cause> (kind=X path=Y)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var cause strings.Builder

	head := e.sentinel().Error()

	switch {
	case e.Err == nil:
		cause.WriteString(head)
	case strings.HasPrefix(e.Err.Error(), head):
		// Codec errors may already lead with the sentinel text.
		cause.WriteString(e.Err.Error())
	default:
		cause.WriteString(head)
		cause.WriteString(": ")
		cause.WriteString(e.Err.Error())
	}

	cause.WriteString(" (kind=")
	cause.WriteString(e.Kind.String())

	if e.Path != "" {
		cause.WriteString(" path=")
		cause.WriteString(e.Path)
	}

	cause.WriteString(")")

	return cause.String()
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	if s, ok := kindSentinels[e.Kind]; ok {
		return s
	}

	return errUnknownKind
}

var errUnknownKind = errors.New("ringstore: unknown error")

func newError(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Err: cause}
}

// KindOf returns the [Kind] of the first [*Error] in err's chain, or 0.
func KindOf(err error) Kind {
	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr.Kind
	}

	return 0
}
