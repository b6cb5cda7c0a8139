package ringstore

import (
	"fmt"
)

// Result is the outcome of one Load or Save.
//
// OK reports overall success. Err is the classified [*Error] recorded for the
// call; it is always set when OK is false, and may also be set when OK is true
// (for example a corrupt slot next to a good one during a non-strict Load).
type Result struct {
	OK       bool
	Err      error
	Path     string
	Sequence uint64
}

// Storage persists one object in a ring of files.
//
// Save rotates across the ring, so the freshest valid copy is never the file
// being overwritten. Load scans every file and picks the copy with the
// highest sequence number.
//
// # Concurrency
//
// Storage is NOT safe for concurrent use. It has no internal locking: the
// object, cursor and status fields are owned by a single goroutine. Callers
// sharing a Storage must serialize every call themselves. Separate processes
// must not write the same ring.
//
// All I/O is synchronous. Load and Save block for directory checks, file
// I/O, encoding and (with [CommitToDisk]) the flush to the medium. No file
// handles are held between calls.
type Storage[T Object] struct {
	cfg   Config[T]
	paths []string
	load  loader[T]

	object   T
	cursor   int
	lastSeq  uint64
	lastPath string
	lastErr  error
	failures int
}

// New validates cfg and returns a Storage holding a fresh default object with
// the cursor on the first slot. No I/O is done until Load or Save.
func New[T Object](cfg Config[T]) (*Storage[T], error) {
	c := cfg.clone()

	err := c.validate()
	if err != nil {
		return nil, err
	}

	obj := c.New()
	if isNil(obj) {
		return nil, fmt.Errorf("%w: New returned nil", ErrInvalidConfig)
	}

	s := &Storage[T]{
		cfg:    c,
		paths:  planPaths(c.Dir, c.BaseName, c.Extension, c.SlotLabels),
		object: obj,
	}

	s.load = loader[T]{cfg: &s.cfg, paths: s.paths}

	return s, nil
}

// --- Load ---

// Load loads the freshest ring file into [Storage.Object].
//
// Returns a classified [*Error] if the load failed after any auto-save.
// Problems that did not fail the load (a corrupt file next to a good one)
// are available via [Storage.LastError].
func (s *Storage[T]) Load() error {
	_, err := s.LoadAllowThrow(true)

	return err
}

// LoadNoThrow is Load returning only the success flag. The error is kept in
// [Storage.LastError].
func (s *Storage[T]) LoadNoThrow() bool {
	ok, _ := s.LoadAllowThrow(false)

	return ok
}

// LoadAllowThrow loads the ring. The error is returned only when allowThrow
// is set and the load failed; it is always kept in [Storage.LastError].
func (s *Storage[T]) LoadAllowThrow(allowThrow bool) (bool, error) {
	res := s.LoadResult()

	return res.OK, raise(res, allowThrow)
}

// LoadResult loads the ring and returns the full [Result].
func (s *Storage[T]) LoadResult() Result {
	out := s.load.load()

	s.object = out.object
	s.cursor = out.cursor
	s.failures = 0

	if out.found {
		s.lastSeq = max(s.lastSeq, out.seq)
		s.lastPath = out.path
	} else {
		s.lastPath = ""
	}

	s.countAnomalies(&out)

	res := Result{
		OK:       out.ok(s.cfg.FailOnAnomaly),
		Path:     out.path,
		Sequence: out.seq,
	}

	if out.err != nil {
		res.Err = out.err
	}

	if !res.OK && s.autoSave(&out) {
		res = Result{OK: true, Path: s.lastPath, Sequence: s.lastSeq}
	}

	s.lastErr = res.Err

	loadTotal.WithLabelValues(s.cfg.BaseName, resultLabel(res.OK)).Inc()
	s.reportLoad(res)

	return res
}

func (s *Storage[T]) countAnomalies(out *loadOutcome[T]) {
	for _, e := range out.errs {
		anomalyTotal.WithLabelValues(s.cfg.BaseName, e.Kind.String()).Inc()
	}

	if out.zeroPath != "" {
		anomalyTotal.WithLabelValues(s.cfg.BaseName, KindZeroSequence.String()).Inc()
	}

	if out.dupPath != "" {
		anomalyTotal.WithLabelValues(s.cfg.BaseName, KindDuplicateSequence.String()).Inc()
	}
}

func (s *Storage[T]) reportLoad(res Result) {
	if !res.OK {
		s.cfg.Sink.Issue("load failed: " + res.Err.Error())

		return
	}

	if res.Err != nil {
		s.cfg.Sink.Issue(res.Err.Error())
	}

	s.cfg.Sink.Success(fmt.Sprintf("loaded %s (sequence %d)", res.Path, res.Sequence))
}

// --- Save ---

// Save writes the current object to the next slot.
// Returns a classified [*Error] if the save failed.
func (s *Storage[T]) Save() error {
	_, err := s.SaveAllowThrow(true)

	return err
}

// SaveObject makes obj the current object and saves it.
//
// A nil obj is replaced by a fresh default object, which is written; the call
// still fails with [ErrNullObject].
func (s *Storage[T]) SaveObject(obj T) error {
	_, err := s.SaveObjectAllowThrow(obj, true)

	return err
}

// SaveNoThrow is Save returning only the success flag. The error is kept in
// [Storage.LastError].
func (s *Storage[T]) SaveNoThrow() bool {
	ok, _ := s.SaveAllowThrow(false)

	return ok
}

// SaveObjectNoThrow is SaveObject returning only the success flag.
func (s *Storage[T]) SaveObjectNoThrow(obj T) bool {
	ok, _ := s.SaveObjectAllowThrow(obj, false)

	return ok
}

// SaveAllowThrow saves the current object. The error is returned only when
// allowThrow is set and the save failed.
func (s *Storage[T]) SaveAllowThrow(allowThrow bool) (bool, error) {
	return s.SaveObjectAllowThrow(s.object, allowThrow)
}

// SaveObjectAllowThrow saves obj. The error is returned only when allowThrow
// is set and the save failed.
func (s *Storage[T]) SaveObjectAllowThrow(obj T, allowThrow bool) (bool, error) {
	res := s.SaveResult(obj)

	return res.OK, raise(res, allowThrow)
}

// SaveResult saves obj and returns the full [Result].
func (s *Storage[T]) SaveResult(obj T) Result {
	res := s.save(obj)

	s.lastErr = res.Err

	if res.OK {
		s.cfg.Sink.Success(fmtSaved("saved", res))
	} else {
		s.cfg.Sink.Issue("save failed: " + res.Err.Error())
	}

	return res
}

// AdvanceToNextFile moves the write cursor to the next slot without writing.
//
// Used with [AdvanceOnSuccessOnly] to implement custom retry policies.
func (s *Storage[T]) AdvanceToNextFile() {
	s.advance()
}

// --- Status ---

// Object returns the current in-memory object. Never nil.
func (s *Storage[T]) Object() T {
	return s.object
}

// LastObjectFilePath returns the file the current object was last loaded
// from or saved to. Empty after a Load that found nothing usable.
func (s *Storage[T]) LastObjectFilePath() string {
	return s.lastPath
}

// LastError returns the error recorded by the last Load or Save, or nil.
func (s *Storage[T]) LastError() error {
	return s.lastErr
}

// Cursor returns the index of the slot the next Save writes to.
func (s *Storage[T]) Cursor() int {
	return s.cursor
}

// LastSequenceNumber returns the highest sequence number loaded or assigned.
func (s *Storage[T]) LastSequenceNumber() uint64 {
	return s.lastSeq
}

// Paths returns the ring file paths in ring order.
func (s *Storage[T]) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Config returns a copy of the configuration, with defaults applied.
func (s *Storage[T]) Config() Config[T] {
	c := s.cfg
	c.SlotLabels = append([]string(nil), s.cfg.SlotLabels...)

	return c
}

func raise(res Result, allowThrow bool) error {
	if !allowThrow || res.OK {
		return nil
	}

	return res.Err
}

func fmtSaved(verb string, res Result) string {
	return fmt.Sprintf("%s %s (sequence %d)", verb, res.Path, res.Sequence)
}
