package ringstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/ringstore/pkg/fs"
	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

func Test_AutoSave_Flips_Load_To_Success_On_Empty_Ring(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AutoSave = ringstore.AutoSaveOnNoFilesFound | ringstore.AutoSaveSuccessMakesLoadSucceed

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.NoError(t, st.LastError())
	assert.Equal(t, slotPath(cfg, "a"), st.LastObjectFilePath())
	assert.True(t, fileExists(t, slotPath(cfg, "a")))
	assert.Equal(t, uint64(1), st.Object().Seq)
	assert.Equal(t, 1, st.Cursor())
}

func Test_AutoSave_Without_Flip_Writes_But_Load_Still_Fails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AutoSave = ringstore.AutoSaveOnNoFilesFound

	st := mustNew(t, cfg)

	err := st.Load()
	require.ErrorIs(t, err, ringstore.ErrNoFilesFound)
	assert.Same(t, err, st.LastError(), "auto-save never overwrites the load error")
	assert.True(t, fileExists(t, slotPath(cfg, "a")))
	assert.Equal(t, slotPath(cfg, "a"), st.LastObjectFilePath())
}

func Test_AutoSave_OnNoFilesFound_Does_Not_Trigger_When_Files_Exist(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AutoSave = ringstore.AutoSaveOnNoFilesFound | ringstore.AutoSaveSuccessMakesLoadSucceed
	writeRaw(t, slotPath(cfg, "b"), "garbage")

	st := mustNew(t, cfg)

	require.ErrorIs(t, st.Load(), ringstore.ErrDecodeFailed)
	assert.False(t, fileExists(t, slotPath(cfg, "a")))
	assert.False(t, fileExists(t, slotPath(cfg, "c")))
}

func Test_AutoSave_OnAnyFailedLoad_Repairs_Corrupt_Ring(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AutoSave = ringstore.AutoSaveOnAnyFailedLoad | ringstore.AutoSaveSuccessMakesLoadSucceed
	writeRaw(t, slotPath(cfg, "b"), "garbage")

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, slotPath(cfg, "a"), st.LastObjectFilePath())

	// The repaired ring loads cleanly next time, garbage in b aside.
	cfg.AutoSave = ringstore.AutoSaveNone
	again := mustNew(t, cfg)

	require.NoError(t, again.Load())
	assert.Equal(t, uint64(1), again.Object().Seq)
}

func Test_AutoSave_Triggers_On_Strict_Anomaly_Failure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.FailOnAnomaly = true
	cfg.AutoSave = ringstore.AutoSaveOnAnyFailedLoad | ringstore.AutoSaveSuccessMakesLoadSucceed
	writeSeq(t, slotPath(cfg, "a"), 5, 1)
	writeSeq(t, slotPath(cfg, "b"), 5, 2)

	st := mustNew(t, cfg)

	require.NoError(t, st.Load())
	assert.Equal(t, uint64(6), st.Object().Seq)
	assert.Equal(t, slotPath(cfg, "b"), st.LastObjectFilePath(), "auto-save writes past the winner")
}

func Test_AutoSave_Failure_Keeps_Load_Error_And_Reports_Issue(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AutoSave = ringstore.AutoSaveOnNoFilesFound | ringstore.AutoSaveSuccessMakesLoadSucceed

	sink := &recordingSink{}
	cfg.Sink = sink

	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{})
	chaos.SetFault(slotPath(cfg, "a"), fs.FaultReadOnly)
	cfg.FS = chaos

	st := mustNew(t, cfg)

	ok, err := st.LoadAllowThrow(true)
	assert.False(t, ok)
	require.ErrorIs(t, err, ringstore.ErrNoFilesFound)
	require.ErrorIs(t, st.LastError(), ringstore.ErrNoFilesFound)

	require.Len(t, sink.issues, 2)
	assert.Contains(t, sink.issues[0], "auto-save failed")
	assert.Contains(t, sink.issues[1], "load failed")
}

func Test_AutoSave_None_Never_Writes(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	st := mustNew(t, cfg)

	require.Error(t, st.Load())

	for _, p := range st.Paths() {
		assert.False(t, fileExists(t, p))
	}
}
