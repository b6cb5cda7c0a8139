package ringstore_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

// state is the object persisted by most tests.
type state struct {
	Seq     uint64 `json:"sequence_number" yaml:"sequence_number"`
	Counter int    `json:"counter"         yaml:"counter"`
	Name    string `json:"name,omitempty"  yaml:"name,omitempty"`
}

func (s *state) SequenceNumber() uint64     { return s.Seq }
func (s *state) SetSequenceNumber(n uint64) { s.Seq = n }

func newState() *state { return &state{} }

// testConfig returns a buffered three-slot ring in a fresh temp dir.
// Buffered keeps the tests fast; durability tiers have their own tests.
func testConfig(t *testing.T) ringstore.Config[*state] {
	t.Helper()

	cfg := ringstore.DefaultConfig(t.TempDir(), "state", newState)
	cfg.Durability = ringstore.Buffered

	return cfg
}

func mustNew(t *testing.T, cfg ringstore.Config[*state]) *ringstore.Storage[*state] {
	t.Helper()

	st, err := ringstore.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return st
}

func slotPath(cfg ringstore.Config[*state], label string) string {
	return filepath.Join(cfg.Dir, cfg.BaseName+label+cfg.Extension)
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err = os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeSeq(t *testing.T, path string, seq uint64, counter int) {
	t.Helper()

	writeRaw(t, path, `{"sequence_number": `+strconv.FormatUint(seq, 10)+`, "counter": `+strconv.Itoa(counter)+`}`)
}

func readRaw(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return string(data)
}

func fileExists(t *testing.T, path string) bool {
	t.Helper()

	_, err := os.Stat(path)
	if err == nil {
		return true
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	t.Fatalf("stat %s: %v", path, err)

	return false
}

// recordingSink collects sink lines for assertions.
type recordingSink struct {
	issues    []string
	successes []string
}

func (r *recordingSink) Issue(msg string)   { r.issues = append(r.issues, msg) }
func (r *recordingSink) Success(msg string) { r.successes = append(r.successes, msg) }

var errEncode = errors.New("encode refused")

// failingCodec wraps JSON and fails Encode while fail is set.
type failingCodec struct {
	fail bool
}

func (c *failingCodec) Encode(w io.Writer, v *state) error {
	if c.fail {
		return errEncode
	}

	return ringstore.JSONCodec[*state]{}.Encode(w, v)
}

func (c *failingCodec) Decode(r io.Reader, v *state) error {
	return ringstore.JSONCodec[*state]{}.Decode(r, v)
}
