package ringstore

import (
	"fmt"
	"os"
	"strings"

	"github.com/calvinalkan/ringstore/pkg/fs"
)

// Object is the contract between a persisted type and ringstore.
//
// The sequence number is assigned by [Storage.Save]; callers never set it.
// Zero is reserved for "never validly saved": a ring file that decodes with
// sequence number 0 is reported as an anomaly and never chosen.
//
// Implementations are usually pointer types:
//
//	type State struct {
//	    Seq     uint64 `json:"sequence_number"`
//	    Counter int    `json:"counter"`
//	}
//
//	func (s *State) SequenceNumber() uint64     { return s.Seq }
//	func (s *State) SetSequenceNumber(n uint64) { s.Seq = n }
type Object interface {
	SequenceNumber() uint64
	SetSequenceNumber(n uint64)
}

// Durability selects how hard a Save works to get bytes onto the medium.
// Tiers are ordered by durability and by latency cost.
type Durability int

const (
	// Buffered writes go to the OS page cache only.
	Buffered Durability = iota

	// WriteThrough opens the file with [fs.WriteThroughFlag], so each write
	// returns after the data left the OS cache.
	WriteThrough

	// CommitToDisk is WriteThrough plus an explicit flush-to-medium call
	// ([Config.Flush]) after writing. On platforms where [fs.PhysicalFlush]
	// is false this degrades to WriteThrough.
	CommitToDisk
)

// String returns "buffered", "write-through" or "commit-to-disk".
func (d Durability) String() string {
	switch d {
	case Buffered:
		return "buffered"
	case WriteThrough:
		return "write-through"
	case CommitToDisk:
		return "commit-to-disk"
	default:
		return fmt.Sprintf("durability(%d)", int(d))
	}
}

// ParseDurability parses the names produced by [Durability.String].
func ParseDurability(s string) (Durability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buffered":
		return Buffered, nil
	case "write-through", "writethrough":
		return WriteThrough, nil
	case "commit-to-disk", "commit", "committodisk":
		return CommitToDisk, nil
	default:
		return 0, fmt.Errorf("%w: unknown durability %q", ErrInvalidConfig, s)
	}
}

// AdvanceRule decides when Save moves the write cursor to the next slot.
type AdvanceRule int

const (
	// AdvanceAlways advances after every Save, successful or not.
	AdvanceAlways AdvanceRule = iota

	// AdvanceOnSuccessOnly advances only after a successful Save. A failed Save
	// leaves the cursor in place so a retry targets the same file. Use
	// [Storage.AdvanceToNextFile] to build custom retry policies.
	AdvanceOnSuccessOnly

	// AdvanceOnSuccessOrNFailures advances after a successful Save, or after
	// [Config.FailureThreshold] consecutive failed Saves.
	AdvanceOnSuccessOrNFailures
)

// String returns "always", "on-success" or "on-success-or-n-failures".
func (r AdvanceRule) String() string {
	switch r {
	case AdvanceAlways:
		return "always"
	case AdvanceOnSuccessOnly:
		return "on-success"
	case AdvanceOnSuccessOrNFailures:
		return "on-success-or-n-failures"
	default:
		return fmt.Sprintf("advance(%d)", int(r))
	}
}

// ParseAdvanceRule parses the names produced by [AdvanceRule.String].
func ParseAdvanceRule(s string) (AdvanceRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return AdvanceAlways, nil
	case "on-success", "on-success-only":
		return AdvanceOnSuccessOnly, nil
	case "on-success-or-n-failures", "on-n-failures":
		return AdvanceOnSuccessOrNFailures, nil
	default:
		return 0, fmt.Errorf("%w: unknown advance rule %q", ErrInvalidConfig, s)
	}
}

// AutoSave is a set of flags controlling self-healing saves after a failed Load.
// Flags combine with bitwise OR.
type AutoSave uint8

const (
	// AutoSaveNone disables auto-save.
	AutoSaveNone AutoSave = 0

	// AutoSaveOnNoFilesFound saves after a failed Load that found no ring files.
	AutoSaveOnNoFilesFound AutoSave = 1 << 0

	// AutoSaveOnAnyFailedLoad saves after any failed Load.
	AutoSaveOnAnyFailedLoad AutoSave = 1 << 1

	// AutoSaveSuccessMakesLoadSucceed turns the failed Load into a success
	// (and clears the recorded error) when the auto-save succeeds.
	AutoSaveSuccessMakesLoadSucceed AutoSave = 1 << 2
)

// Has reports whether all flags in f are set.
func (a AutoSave) Has(f AutoSave) bool {
	return f != 0 && a&f == f
}

// String lists the set flags joined by "|", or "none".
func (a AutoSave) String() string {
	if a == AutoSaveNone {
		return "none"
	}

	var parts []string

	if a.Has(AutoSaveOnNoFilesFound) {
		parts = append(parts, "no-files")
	}

	if a.Has(AutoSaveOnAnyFailedLoad) {
		parts = append(parts, "any-failure")
	}

	if a.Has(AutoSaveSuccessMakesLoadSucceed) {
		parts = append(parts, "flip-result")
	}

	return strings.Join(parts, "|")
}

// ParseAutoSave parses a "|" or "," separated list of the names produced by
// [AutoSave.String].
func ParseAutoSave(s string) (AutoSave, error) {
	var out AutoSave

	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "none", "":
		case "no-files":
			out |= AutoSaveOnNoFilesFound
		case "any-failure":
			out |= AutoSaveOnAnyFailedLoad
		case "flip-result":
			out |= AutoSaveSuccessMakesLoadSucceed
		default:
			return 0, fmt.Errorf("%w: unknown auto-save flag %q", ErrInvalidConfig, part)
		}
	}

	return out, nil
}

// Config is the immutable configuration of a [Storage].
//
// [New] deep-copies it; mutating the caller's value afterwards has no effect.
// Ring files are named Dir/BaseName<label>Extension for each label in
// SlotLabels, in order.
type Config[T Object] struct {
	// Dir is the directory holding the ring files. Required.
	Dir string

	// BaseName is the file name prefix. Required.
	BaseName string

	// Extension is appended after the slot label, including the dot (".json").
	// May be empty.
	Extension string

	// SlotLabels are the distinct, non-empty slot labels. Their order is the
	// ring's write order and their count is the ring size. Required.
	SlotLabels []string

	// BufferSize is the expected encoded size in bytes, used to pre-allocate
	// read and write buffers. Must be > 0.
	BufferSize int

	// Durability is the write tier. Default: [Buffered] (zero value).
	Durability Durability

	// AutoCreateDir creates Dir (and parents) on Load and Save when missing.
	AutoCreateDir bool

	// Advance is the cursor advance rule for Save. Default: [AdvanceAlways].
	Advance AdvanceRule

	// FailureThreshold is the number of consecutive failed Saves after which
	// [AdvanceOnSuccessOrNFailures] advances. Must be >= 1 for that rule.
	FailureThreshold int

	// FailOnAnomaly makes Load fail whenever any error or anomaly was
	// recorded, even if a usable file was found. When false, Load fails only
	// if nothing usable was found.
	FailOnAnomaly bool

	// AutoSave controls self-healing saves after a failed Load.
	AutoSave AutoSave

	// Sink receives human-readable status lines. Nil discards them.
	Sink Sink

	// Codec encodes and decodes objects. Nil uses [JSONCodec].
	Codec Codec[T]

	// New returns a fresh default object. Required.
	New func() T

	// FS is the filesystem. Nil uses [fs.NewReal].
	FS fs.FS

	// Flush forces written data to the physical medium for [CommitToDisk].
	// Nil uses [fs.FlushToMedium].
	Flush func(f fs.File) error

	// Perm is the ring file mode. Zero uses 0o644.
	Perm os.FileMode

	// DirPerm is the mode for created directories. Zero uses 0o755.
	DirPerm os.FileMode
}

// Defaults applied by [DefaultConfig] and [New].
const (
	DefaultExtension  = ".json"
	DefaultSlotLabels = "abc"
	DefaultBufferSize = 4096

	defaultPerm    os.FileMode = 0o644
	defaultDirPerm os.FileMode = 0o755
)

// DefaultConfig returns a three-slot, commit-to-disk JSON ring in dir.
func DefaultConfig[T Object](dir, baseName string, newFn func() T) Config[T] {
	return Config[T]{
		Dir:           dir,
		BaseName:      baseName,
		Extension:     DefaultExtension,
		SlotLabels:    SlotLabelsFromString(DefaultSlotLabels),
		BufferSize:    DefaultBufferSize,
		Durability:    CommitToDisk,
		AutoCreateDir: true,
		Advance:       AdvanceAlways,
		New:           newFn,
	}
}

// SlotLabelsFromString returns one label per rune of s ("abc" -> a, b, c).
func SlotLabelsFromString(s string) []string {
	labels := make([]string, 0, len(s))
	for _, r := range s {
		labels = append(labels, string(r))
	}

	return labels
}

// clone returns a deep copy with defaults filled in.
func (c Config[T]) clone() Config[T] {
	out := c
	out.SlotLabels = append([]string(nil), c.SlotLabels...)

	if out.Sink == nil {
		out.Sink = nopSink{}
	}

	if out.Codec == nil {
		out.Codec = JSONCodec[T]{}
	}

	if out.FS == nil {
		out.FS = fs.NewReal()
	}

	if out.Flush == nil {
		out.Flush = fs.FlushToMedium
	}

	if out.Perm == 0 {
		out.Perm = defaultPerm
	}

	if out.DirPerm == 0 {
		out.DirPerm = defaultDirPerm
	}

	return out
}

func (c Config[T]) validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: Dir is required", ErrInvalidConfig)
	}

	if c.BaseName == "" {
		return fmt.Errorf("%w: BaseName is required", ErrInvalidConfig)
	}

	if len(c.SlotLabels) == 0 {
		return fmt.Errorf("%w: SlotLabels is required", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.SlotLabels))

	for i, label := range c.SlotLabels {
		if label == "" {
			return fmt.Errorf("%w: SlotLabels[%d] is empty", ErrInvalidConfig, i)
		}

		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate slot label %q", ErrInvalidConfig, label)
		}

		seen[label] = struct{}{}
	}

	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: BufferSize must be > 0, got %d", ErrInvalidConfig, c.BufferSize)
	}

	if c.Durability < Buffered || c.Durability > CommitToDisk {
		return fmt.Errorf("%w: unknown durability %d", ErrInvalidConfig, int(c.Durability))
	}

	if c.Advance < AdvanceAlways || c.Advance > AdvanceOnSuccessOrNFailures {
		return fmt.Errorf("%w: unknown advance rule %d", ErrInvalidConfig, int(c.Advance))
	}

	if c.Advance == AdvanceOnSuccessOrNFailures && c.FailureThreshold < 1 {
		return fmt.Errorf("%w: FailureThreshold must be >= 1, got %d", ErrInvalidConfig, c.FailureThreshold)
	}

	if c.New == nil {
		return fmt.Errorf("%w: New is required", ErrInvalidConfig)
	}

	return nil
}
