// Package ringstore persists one small, frequently updated object to a ring
// of files so that a crash or a single corrupted file never loses the last
// successfully saved copy.
//
// A ring of K slots maps to K files named Dir/BaseName<label>Extension. Every
// Save writes the whole object to the slot under the write cursor, stamped
// with a sequence number one greater than any seen before, and then moves
// the cursor on. Load reads every slot and picks the copy with the strictly
// greatest sequence number, then points the cursor at the slot after it.
//
// Basic usage:
//
//	cfg := ringstore.DefaultConfig(dir, "state", func() *State { return &State{} })
//	cfg.AutoSave = ringstore.AutoSaveOnNoFilesFound | ringstore.AutoSaveSuccessMakesLoadSucceed
//
//	st, err := ringstore.New(cfg)
//	if err != nil {
//	    return err
//	}
//
//	if err := st.Load(); err != nil {
//	    return err
//	}
//
//	st.Object().Counter++
//
//	if err := st.Save(); err != nil {
//	    return err
//	}
//
// # Failure handling
//
// A bad file never aborts a Load: every slot is tried and the first problem
// becomes the reported error (see [Kind]). Sequence number 0 and a tie on the
// highest sequence number are anomalies. Whether anomalies fail the Load is
// controlled by [Config.FailOnAnomaly].
//
// Each operation comes in three shapes. Load and Save return an error.
// LoadNoThrow and SaveNoThrow return a bool. LoadAllowThrow and
// SaveAllowThrow take the choice as a parameter. In every shape the error is
// kept in [Storage.LastError].
//
// # Durability
//
// [Buffered] leaves data in the OS cache. [WriteThrough] opens files with
// [fs.WriteThroughFlag]. [CommitToDisk] also calls [Config.Flush] after the
// write. On platforms where [fs.PhysicalFlush] is false the flush is a plain
// fsync and CommitToDisk behaves like WriteThrough.
//
// # Concurrency
//
// A [Storage] is owned by one goroutine. See [Storage] for details.
package ringstore
