package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/calvinalkan/ringstore/pkg/fs"
	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

// session is the state shared by every command of one ringctl invocation.
type session struct {
	cfg    Config
	logger *log.Logger
	writer string
	now    func() time.Time
}

func newSession(cfg Config, logger *log.Logger) *session {
	return &session{
		cfg:    cfg,
		logger: logger,
		writer: uuid.NewString(),
		now:    time.Now,
	}
}

// openRing returns a Storage for the configured ring. No I/O is done.
func (s *session) openRing() (*ringstore.Storage[*Document], error) {
	rc, err := s.cfg.RingConfig(ringstore.NewLogrusSink(s.logger, s.cfg.Name))
	if err != nil {
		return nil, err
	}

	st, err := ringstore.New(rc)
	if err != nil {
		return nil, fmt.Errorf("open ring: %w", err)
	}

	return st, nil
}

// loadRing opens the ring and loads it. Anomalies that did not fail the load
// become warnings on o.
func (s *session) loadRing(o *IO) (*ringstore.Storage[*Document], error) {
	st, err := s.openRing()
	if err != nil {
		return nil, err
	}

	res := st.LoadResult()
	if !res.OK {
		return st, res.Err
	}

	warnAnomaly(o, res.Err)

	return st, nil
}

// loadForWrite loads the ring before a save. A ring with no files yet starts
// from an empty document; any other load failure is returned unless force is
// set.
func (s *session) loadForWrite(o *IO, force bool) (*ringstore.Storage[*Document], error) {
	st, err := s.loadRing(o)
	if err == nil {
		return st, nil
	}

	if st == nil {
		return nil, err
	}

	if errors.Is(err, ringstore.ErrNoFilesFound) {
		return st, nil
	}

	if !force {
		return nil, fmt.Errorf("%w (use --force to overwrite with a fresh document)", err)
	}

	o.Warn(err.Error(), "starting from an empty document")

	return st, nil
}

// lockPath is the writer lock file next to the slots.
func (s *session) lockPath() string {
	return filepath.Join(s.cfg.DirAbs, s.cfg.Name+".lock")
}

// lockRing takes the ring's writer lock. Every ringctl command that saves
// holds it until it is done.
func (s *session) lockRing() (*fs.Lock, error) {
	timeout, err := s.cfg.lockTimeout()
	if err != nil {
		return nil, err
	}

	lk, err := fs.NewLocker(fs.NewReal()).LockWithTimeout(s.lockPath(), timeout)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("%w: %s is held by another writer: %w", ErrRingLocked, s.lockPath(), err)
		}

		return nil, fmt.Errorf("lock ring: %w", err)
	}

	return lk, nil
}

// commit stamps doc and saves it to the next slot.
func (s *session) commit(st *ringstore.Storage[*Document], doc *Document) (ringstore.Result, error) {
	doc.stamp(s.writer, s.now())

	res := st.SaveResult(doc)
	if !res.OK {
		return res, res.Err
	}

	return res, nil
}

func warnAnomaly(o *IO, err error) {
	if err == nil {
		return
	}

	o.Warn(err.Error(), "run 'ringctl save' to rewrite a healthy slot")
}
