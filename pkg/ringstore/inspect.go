package ringstore

import (
	"fmt"
	"time"
)

// SlotStatus describes one ring file as seen by [Storage.Inspect].
type SlotStatus struct {
	Index    int
	Label    string
	Path     string
	Exists   bool
	Sequence uint64
	Size     int64
	ModTime  time.Time

	// Authoritative is set on the slot a Load would pick.
	Authoritative bool

	// Err is the classified problem with this slot, nil for a healthy or
	// absent file.
	Err error
}

// Inspect reads every slot and reports its state. It never creates
// directories and leaves the object, cursor and status untouched.
func (s *Storage[T]) Inspect() []SlotStatus {
	out := make([]SlotStatus, len(s.paths))

	best := -1

	var bestSeq uint64

	for i, path := range s.paths {
		st := SlotStatus{Index: i, Label: s.cfg.SlotLabels[i], Path: path}

		exists, obj, slotErr := s.load.readSlot(path, false)
		st.Exists = exists

		if exists {
			info, err := s.cfg.FS.Stat(path)
			if err == nil {
				st.Size = info.Size()
				st.ModTime = info.ModTime()
			}
		}

		switch {
		case slotErr != nil:
			st.Err = slotErr
		case exists:
			st.Sequence = obj.SequenceNumber()
			switch {
			case st.Sequence == 0:
				st.Err = newError(KindZeroSequence, path, nil)
			case st.Sequence == bestSeq:
				st.Err = newError(KindDuplicateSequence, path,
					fmt.Errorf("sequence number %d also in %s", st.Sequence, s.paths[best]))
			case st.Sequence > bestSeq:
				best = i
				bestSeq = st.Sequence
			}
		}

		out[i] = st
	}

	if best >= 0 {
		out[best].Authoritative = true
	}

	return out
}
