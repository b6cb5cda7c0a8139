// Load arbitration tests.
//
// Oracle: the slot with the strictly greatest nonzero sequence number wins;
// the first problem in scan order is the reported error.
// Technique: hand-written ring files + Load.

package ringstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/ringstore/pkg/fs"
	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

func Test_Load_Returns_NoFilesFound_When_Ring_Is_Empty(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrNoFilesFound)
	assert.Equal(t, ringstore.KindNoFilesFound, ringstore.KindOf(err))

	assert.Equal(t, &state{}, st.Object())
	assert.Empty(t, st.LastObjectFilePath())
	assert.Equal(t, 0, st.Cursor(), "cursor wraps to the first slot")
	assert.Same(t, err, st.LastError())
}

func Test_LoadNoThrow_Returns_False_And_Keeps_Error_When_Ring_Is_Empty(t *testing.T) {
	t.Parallel()

	st := mustNew(t, testConfig(t))

	if st.LoadNoThrow() {
		t.Fatal("LoadNoThrow=true, want=false")
	}

	if !errors.Is(st.LastError(), ringstore.ErrNoFilesFound) {
		t.Fatalf("LastError=%v, want=%v", st.LastError(), ringstore.ErrNoFilesFound)
	}

	ok, err := st.LoadAllowThrow(false)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func Test_Load_Creates_Directory_When_AutoCreateDir_Is_Set(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "nested", "ring")

	st := mustNew(t, cfg)
	_ = st.LoadNoThrow()

	info, err := os.Stat(cfg.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func Test_Load_Does_Not_Create_Directory_When_AutoCreateDir_Is_Unset(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "missing")
	cfg.AutoCreateDir = false

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrNoFilesFound)
	assert.False(t, fileExists(t, cfg.Dir))
}

func Test_Load_Picks_Highest_Sequence_And_Points_Cursor_Past_It(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 4, 40)
	writeSeq(t, slotPath(cfg, "b"), 6, 60)
	writeSeq(t, slotPath(cfg, "c"), 5, 50)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, &state{Seq: 6, Counter: 60}, st.Object())
	assert.Equal(t, slotPath(cfg, "b"), st.LastObjectFilePath())
	assert.Equal(t, 2, st.Cursor())
	assert.Equal(t, uint64(6), st.LastSequenceNumber())
	assert.NoError(t, st.LastError())
}

func Test_Load_Wraps_Cursor_When_Last_Slot_Wins(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 1, 1)
	writeSeq(t, slotPath(cfg, "c"), 2, 2)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, 0, st.Cursor())
}

func Test_Load_Recovers_Valid_File_When_Others_Are_Corrupt(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, slotPath(cfg, "a"), `{"sequence_number": 9, "coun`)
	writeSeq(t, slotPath(cfg, "b"), 3, 30)
	writeRaw(t, slotPath(cfg, "c"), "\x00\x00\x00")

	st := mustNew(t, cfg)

	require.NoError(t, st.Load(), "non-strict load succeeds when a usable file exists")
	assert.Equal(t, &state{Seq: 3, Counter: 30}, st.Object())
	assert.Equal(t, slotPath(cfg, "b"), st.LastObjectFilePath())

	// First error in scan order is kept for inspection.
	var rErr *ringstore.Error
	require.ErrorAs(t, st.LastError(), &rErr)
	assert.Equal(t, ringstore.KindDecodeFailed, rErr.Kind)
	assert.Equal(t, slotPath(cfg, "a"), rErr.Path)
}

func Test_Load_Succeeds_When_Corrupt_File_Follows_Winner(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 3, 30)
	writeRaw(t, slotPath(cfg, "b"), `not json`)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())

	var rErr *ringstore.Error
	require.ErrorAs(t, st.LastError(), &rErr)
	assert.Equal(t, slotPath(cfg, "b"), rErr.Path, "error of the corrupt slot is still recorded")
	assert.Equal(t, &state{Seq: 3, Counter: 30}, st.Object())
}

func Test_Load_Fails_When_FailOnAnomaly_And_Any_File_Is_Corrupt(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.FailOnAnomaly = true
	writeSeq(t, slotPath(cfg, "a"), 3, 30)
	writeRaw(t, slotPath(cfg, "b"), `not json`)

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrDecodeFailed)

	// The best copy is still loaded.
	assert.Equal(t, &state{Seq: 3, Counter: 30}, st.Object())
	assert.Equal(t, 1, st.Cursor())
}

func Test_Load_Reports_First_Decode_Error_When_No_File_Is_Usable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, slotPath(cfg, "b"), "")

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrDecodeFailed, "first error wins over NoUsableFile")
	assert.Equal(t, &state{}, st.Object())
	assert.Equal(t, 0, st.Cursor())
	assert.Empty(t, st.LastObjectFilePath())
}

func Test_Load_Resets_Object_To_Default_On_Total_Failure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	st := mustNew(t, cfg)

	require.NoError(t, st.SaveObject(&state{Counter: 5}))

	for _, label := range cfg.SlotLabels {
		writeRaw(t, slotPath(cfg, label), "[1, 2]")
	}

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrTypeMismatch)
	assert.Equal(t, &state{}, st.Object())
	assert.Equal(t, uint64(1), st.LastSequenceNumber(), "sequence continuity survives a failed load")
}

func Test_Load_Reports_TypeMismatch_When_Field_Has_Wrong_Type(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, slotPath(cfg, "a"), `{"sequence_number": 2, "counter": "many"}`)

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrTypeMismatch)
	assert.Equal(t, ringstore.KindTypeMismatch, ringstore.KindOf(err))
}

func Test_Load_Never_Picks_Zero_Sequence_And_Flags_It(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 0, 999)
	writeSeq(t, slotPath(cfg, "b"), 1, 10)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, &state{Seq: 1, Counter: 10}, st.Object())

	var rErr *ringstore.Error
	require.ErrorAs(t, st.LastError(), &rErr)
	assert.Equal(t, ringstore.KindZeroSequence, rErr.Kind)
	assert.Equal(t, slotPath(cfg, "a"), rErr.Path)
}

func Test_Load_Fails_When_Only_Zero_Sequence_Exists(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "c"), 0, 1)

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrZeroSequence)
	assert.Equal(t, &state{}, st.Object())
}

func Test_Load_Flags_Duplicate_Maximum_Sequence(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 7, 1)
	writeSeq(t, slotPath(cfg, "b"), 7, 2)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, &state{Seq: 7, Counter: 1}, st.Object(), "first slot in ring order keeps the win")
	require.ErrorIs(t, st.LastError(), ringstore.ErrDuplicateSequence)

	cfg.FailOnAnomaly = true
	strict := mustNew(t, cfg)

	require.ErrorIs(t, strict.Load(), ringstore.ErrDuplicateSequence)
}

func Test_Load_Reports_Duplicate_When_A_Later_Slot_Is_Higher(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 5, 1)
	writeSeq(t, slotPath(cfg, "b"), 5, 2)
	writeSeq(t, slotPath(cfg, "c"), 7, 3)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, &state{Seq: 7, Counter: 3}, st.Object())

	var rerr *ringstore.Error
	require.ErrorAs(t, st.LastError(), &rerr)
	assert.Equal(t, ringstore.KindDuplicateSequence, rerr.Kind)
	assert.Equal(t, slotPath(cfg, "b"), rerr.Path)
	assert.Contains(t, rerr.Error(), "sequence number 5 also in "+slotPath(cfg, "a"))

	cfg.FailOnAnomaly = true
	strict := mustNew(t, cfg)

	assert.False(t, strict.LoadNoThrow())
	require.ErrorIs(t, strict.LastError(), ringstore.ErrDuplicateSequence)
}

func Test_Load_Reports_Earlier_Error_Over_Anomaly(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 0, 0)
	writeRaw(t, slotPath(cfg, "b"), "{")
	writeSeq(t, slotPath(cfg, "c"), 4, 4)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	require.ErrorIs(t, st.LastError(), ringstore.ErrDecodeFailed, "anomalies fold in only without an earlier error")
}

func Test_Load_Reports_PathIsNotADirectory_When_Dir_Is_A_File(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "plain")
	writeRaw(t, cfg.Dir, "x")

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrPathIsNotADirectory)
	assert.Equal(t, 0, st.Cursor())
}

func Test_Load_Reports_DirectoryCreateFailed_When_Mkdir_Fails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "sub")

	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{})
	chaos.SetFault(cfg.Dir, fs.FaultPermission)
	cfg.FS = chaos

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrDirectoryCreateFailed)
	assert.True(t, fs.IsChaosErr(err))
}

func Test_Load_Skips_Unreadable_Slot_And_Uses_Next(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeSeq(t, slotPath(cfg, "a"), 8, 80)
	writeSeq(t, slotPath(cfg, "b"), 5, 50)

	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{})
	chaos.SetFault(slotPath(cfg, "a"), fs.FaultIOError)
	cfg.FS = chaos

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, &state{Seq: 5, Counter: 50}, st.Object())
	require.ErrorIs(t, st.LastError(), ringstore.ErrDecodeFailed)
	assert.Equal(t, 2, st.Cursor())
}

func Test_Load_Accepts_Hand_Edited_JSONC(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, slotPath(cfg, "a"), `{
		// bumped by hand
		"sequence_number": 12,
		"counter": 3,
	}`)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, &state{Seq: 12, Counter: 3}, st.Object())
}

func Test_Load_Reports_Sink_Lines(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	sink := &recordingSink{}
	cfg.Sink = sink

	writeRaw(t, slotPath(cfg, "a"), "{")
	writeSeq(t, slotPath(cfg, "b"), 2, 0)

	st := mustNew(t, cfg)
	require.NoError(t, st.Load())

	require.Len(t, sink.issues, 1)
	assert.Contains(t, sink.issues[0], "decode_failed")
	assert.Equal(t, []string{"loaded " + slotPath(cfg, "b") + " (sequence 2)"}, sink.successes)
}
