package fs

import (
	"bytes"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func newTestChaos(config ChaosConfig) *Chaos {
	return NewChaos(NewReal(), 42, config)
}

func mustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
}

func Test_Chaos_Passes_Through_When_Mode_Is_NoOp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statea.json")
	mustWriteFile(t, path, []byte("data"))

	chaos := newTestChaos(ChaosConfig{OpenFailRate: 1, ReadFailRate: 1, StatFailRate: 1})
	chaos.SetFault(path, FaultIOError)
	chaos.SetMode(ChaosModeNoOp)

	data, err := chaos.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: err=%v, want=nil", err)
	}

	if got, want := string(data), "data"; got != want {
		t.Fatalf("data=%q, want=%q", got, want)
	}

	if got := chaos.TotalFaults(); got != 0 {
		t.Fatalf("TotalFaults=%d, want=0", got)
	}
}

func Test_Chaos_Toggles_Injection_When_Mode_Changes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	chaos := newTestChaos(ChaosConfig{MkdirAllFailRate: 1})

	chaos.SetMode(ChaosModeNoOp)

	if err := chaos.MkdirAll(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatalf("MkdirAll(noop): %v", err)
	}

	chaos.SetMode(ChaosModeActive)

	err := chaos.MkdirAll(filepath.Join(dir, "b"), 0o755)
	if !IsChaosErr(err) {
		t.Fatalf("MkdirAll(active): err=%v, want injected", err)
	}
}

func Test_Chaos_Injects_Open_Error_When_Open_Fail_Rate_Is_One(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	chaos := newTestChaos(ChaosConfig{OpenFailRate: 1})

	_, err := chaos.OpenFile(filepath.Join(dir, "statea.json"), os.O_WRONLY|os.O_CREATE, 0o644)
	if !IsChaosErr(err) {
		t.Fatalf("err=%v, want injected", err)
	}

	var pathErr *iofs.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err=%T, want *fs.PathError inside", err)
	}

	if got, want := chaos.Stats().OpenFails, int64(1); got != want {
		t.Fatalf("OpenFails=%d, want=%d", got, want)
	}
}

func Test_Chaos_Passes_Through_Real_NotExist_Errors_When_Path_Is_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	chaos := newTestChaos(ChaosConfig{})
	path := filepath.Join(dir, "missing.json")

	_, err := chaos.Open(path)
	if !errors.Is(err, iofs.ErrNotExist) {
		t.Fatalf("Open: err=%v, want ErrNotExist", err)
	}

	if IsChaosErr(err) {
		t.Fatalf("Open: err=%v was reported as injected", err)
	}

	exists, err := chaos.Exists(path)
	if err != nil || exists {
		t.Fatalf("Exists=(%v, %v), want=(false, nil)", exists, err)
	}
}

func Test_ChaosFile_Write_Returns_Prefix_And_Error_When_Partial_Write_Rate_Is_One(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "stateb.json")
	chaos := newTestChaos(ChaosConfig{PartialWriteRate: 1})

	f, err := chaos.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	payload := []byte(`{"sequence_number": 12, "counter": 7}`)

	n, err := f.Write(payload)
	if !errors.Is(err, syscall.EIO) {
		t.Fatalf("Write: err=%v, want EIO", err)
	}

	if n <= 0 || n >= len(payload) {
		t.Fatalf("Write: n=%d, want in (0, %d)", n, len(payload))
	}

	_ = f.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if !bytes.Equal(got, payload[:n]) {
		t.Fatalf("file=%q, want prefix %q", got, payload[:n])
	}
}

func Test_ChaosFile_Sync_Returns_Error_When_Sync_Fail_Rate_Is_One(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	chaos := newTestChaos(ChaosConfig{SyncFailRate: 1})

	f, err := chaos.OpenFile(filepath.Join(dir, "statec.json"), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	defer func() { _ = f.Close() }()

	if err := f.Sync(); !errors.Is(err, syscall.EIO) {
		t.Fatalf("Sync: err=%v, want EIO", err)
	}

	if f.Fd() == ^uintptr(0) {
		t.Fatal("Fd returned invalid descriptor for open file")
	}
}

func Test_Chaos_Sticky_Faults_Apply_Per_Path_Until_Cleared(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "statea.json")
	good := filepath.Join(dir, "stateb.json")

	mustWriteFile(t, bad, []byte("x"))
	mustWriteFile(t, good, []byte("y"))

	chaos := newTestChaos(ChaosConfig{})
	chaos.SetFault(bad, FaultIOError)

	if _, err := chaos.Stat(bad); !errors.Is(err, syscall.EIO) {
		t.Fatalf("Stat(bad): err=%v, want EIO", err)
	}

	if _, err := chaos.ReadFile(good); err != nil {
		t.Fatalf("ReadFile(good): %v", err)
	}

	chaos.ClearFaults()

	if _, err := chaos.ReadFile(bad); err != nil {
		t.Fatalf("ReadFile(bad) after clear: %v", err)
	}
}

func Test_Chaos_FaultReadOnly_Rejects_Writes_But_Allows_Reads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statea.json")
	mustWriteFile(t, path, []byte("keep"))

	chaos := newTestChaos(ChaosConfig{})
	chaos.SetFault(path, FaultReadOnly)

	_, err := chaos.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if !errors.Is(err, syscall.EROFS) {
		t.Fatalf("OpenFile(write): err=%v, want EROFS", err)
	}

	f, err := chaos.Open(path)
	if err != nil {
		t.Fatalf("Open(read): %v", err)
	}

	_ = f.Close()

	if err := chaos.WriteFileAtomic(path, []byte("new"), 0o644); !errors.Is(err, syscall.EROFS) {
		t.Fatalf("WriteFileAtomic: err=%v, want EROFS", err)
	}
}

func Test_Chaos_FaultNoSpace_Fails_Write_After_Open(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statea.json")

	chaos := newTestChaos(ChaosConfig{})
	chaos.SetFault(path, FaultNoSpace)

	f, err := chaos.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write([]byte("x")); !errors.Is(err, syscall.ENOSPC) {
		t.Fatalf("Write: err=%v, want ENOSPC", err)
	}
}

func Test_Chaos_FaultPermission_Rejects_MkdirAll(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "ring")
	chaos := newTestChaos(ChaosConfig{})
	chaos.SetFault(dir, FaultPermission)

	err := chaos.MkdirAll(dir, 0o755)
	if !errors.Is(err, iofs.ErrPermission) {
		t.Fatalf("MkdirAll: err=%v, want ErrPermission", err)
	}

	if got, want := chaos.Stats().MkdirAllFails, int64(1); got != want {
		t.Fatalf("MkdirAllFails=%d, want=%d", got, want)
	}
}

func Test_Chaos_Remove_Is_Never_Faulted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statea.json")
	mustWriteFile(t, path, nil)

	chaos := newTestChaos(ChaosConfig{OpenFailRate: 1, StatFailRate: 1})
	chaos.SetFault(path, FaultIOError)

	if err := chaos.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func Test_Chaos_TotalFaults_Returns_Sum_When_Multiple_Fault_Types_Injected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statea.json")
	mustWriteFile(t, path, []byte("x"))

	chaos := newTestChaos(ChaosConfig{ReadFailRate: 1, StatFailRate: 1, MkdirAllFailRate: 1})

	_, _ = chaos.ReadFile(path)
	_, _ = chaos.Stat(path)
	_ = chaos.MkdirAll(filepath.Join(dir, "sub"), 0o755)

	if got, want := chaos.TotalFaults(), int64(3); got != want {
		t.Fatalf("TotalFaults=%d, want=%d", got, want)
	}
}

func Test_Chaos_Is_Reproducible_For_Same_Seed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "statea.json")
	mustWriteFile(t, path, []byte("x"))

	run := func() []bool {
		chaos := NewChaos(NewReal(), 7, ChaosConfig{StatFailRate: 0.5})

		out := make([]bool, 0, 32)
		for range 32 {
			_, err := chaos.Stat(path)
			out = append(out, err != nil)
		}

		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("run diverged at %d", i)
		}
	}
}
