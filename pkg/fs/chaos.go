package fs

import (
	"errors"
	iofs "io/fs"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	// OpenFailRate fails Open/OpenFile with EACCES, EIO, EMFILE or ENFILE.
	OpenFailRate float64

	// ReadFailRate fails File.Read and ReadFile with EIO.
	ReadFailRate float64

	// WriteFailRate fails File.Write entirely with EIO, ENOSPC or EDQUOT.
	WriteFailRate float64

	// PartialWriteRate writes a prefix of the data, then fails with EIO.
	// Models a crash or device error in the middle of a write.
	PartialWriteRate float64

	// SyncFailRate fails File.Sync with EIO.
	SyncFailRate float64

	// MkdirAllFailRate fails MkdirAll with EACCES, EIO, ENOSPC or EROFS.
	MkdirAllFailRate float64

	// StatFailRate fails Stat/Exists with EACCES or EIO.
	StatFailRate float64
}

// Fault is a sticky per-path failure state set with [Chaos.SetFault].
//
// Unlike rates, a sticky fault applies to every matching operation on the
// path until cleared, regardless of the random source. Tests use it to make
// a specific ring slot deterministically broken.
type Fault int

const (
	// FaultNone means no sticky fault. This is the zero value.
	FaultNone Fault = iota
	// FaultIOError is a "bad sector": every open, read, write and stat returns EIO.
	FaultIOError
	// FaultReadOnly rejects write opens, writes and MkdirAll with EROFS. Reads still work.
	FaultReadOnly
	// FaultNoSpace makes writes fail with ENOSPC after opening successfully.
	FaultNoSpace
	// FaultPermission rejects every open and MkdirAll with EACCES.
	FaultPermission
)

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection and sticky faults.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	// Sticky faults are kept but not consulted.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	WriteFails    int64
	PartialWrites int64
	SyncFails     int64
	MkdirAllFails int64
	StatFails     int64
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects failures for testing.
//
// Injected errors are [*iofs.PathError] values carrying a real
// [syscall.Errno], so [errors.Is] and helpers like [os.IsPermission] behave
// like real OS errors. Chaos never injects ENOENT: "missing" always comes from
// the wrapped filesystem.
//
// Random injection is seeded for reproducibility. Sticky faults are applied
// before random injection.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	mu     sync.Mutex
	rng    *rand.Rand
	faults map[string]Fault

	openFails     atomic.Int64
	readFails     atomic.Int64
	writeFails    atomic.Int64
	partialWrites atomic.Int64
	syncFails     atomic.Int64
	mkdirAllFails atomic.Int64
	statFails     atomic.Int64
}

// NewChaos creates a new Chaos filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	return &Chaos{
		fs:     underlying,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		faults: make(map[string]Fault),
	}
}

// SetMode updates Chaos behavior. Safe to call concurrently with operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// SetFault installs a sticky fault for path. [FaultNone] clears it.
func (c *Chaos) SetFault(path string, fault Fault) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fault == FaultNone {
		delete(c.faults, path)

		return
	}

	c.faults[path] = fault
}

// ClearFaults removes every sticky fault.
func (c *Chaos) ClearFaults() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faults = make(map[string]Fault)
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialWrites: c.partialWrites.Load(),
		SyncFails:     c.syncFails.Load(),
		MkdirAllFails: c.mkdirAllFails.Load(),
		StatFails:     c.statFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialWrites +
		s.SyncFails + s.MkdirAllFails + s.StatFails
}

func (c *Chaos) active() bool {
	return ChaosMode(c.mode.Load()) == ChaosModeActive
}

func (c *Chaos) fault(path string) Fault {
	if !c.active() {
		return FaultNone
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.faults[path]
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(rate float64) bool {
	if !c.active() || rate <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errnos[c.rng.Intn(len(errnos))]
}

func (c *Chaos) randIntn(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rng.Intn(n)
}

// pathError creates an [*iofs.PathError] with the given operation, path, and errno,
// marked as injected.
func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &iofs.PathError{Op: op, Path: path, Err: errno}}
}

func isWriteFlag(flag int) bool {
	return flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0
}

// --- File Operations ---

func (c *Chaos) Open(path string) (File, error) {
	return c.OpenFile(path, os.O_RDONLY, 0)
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	switch c.fault(path) {
	case FaultIOError:
		c.openFails.Add(1)

		return nil, pathError("open", path, syscall.EIO)
	case FaultPermission:
		c.openFails.Add(1)

		return nil, pathError("open", path, syscall.EACCES)
	case FaultReadOnly:
		if isWriteFlag(flag) {
			c.openFails.Add(1)

			return nil, pathError("open", path, syscall.EROFS)
		}
	}

	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		return nil, pathError("open", path,
			c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE}))
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	switch c.fault(path) {
	case FaultIOError:
		c.readFails.Add(1)

		return nil, pathError("read", path, syscall.EIO)
	case FaultPermission:
		c.readFails.Add(1)

		return nil, pathError("open", path, syscall.EACCES)
	}

	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		return nil, pathError("read", path, syscall.EIO)
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	switch c.fault(path) {
	case FaultIOError, FaultNoSpace:
		c.writeFails.Add(1)

		return pathError("write", path, syscall.EIO)
	case FaultReadOnly:
		c.writeFails.Add(1)

		return pathError("write", path, syscall.EROFS)
	case FaultPermission:
		c.writeFails.Add(1)

		return pathError("open", path, syscall.EACCES)
	}

	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		return pathError("write", path, syscall.EIO)
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

// --- Directory Operations ---

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	switch c.fault(path) {
	case FaultIOError:
		c.mkdirAllFails.Add(1)

		return pathError("mkdir", path, syscall.EIO)
	case FaultReadOnly:
		c.mkdirAllFails.Add(1)

		return pathError("mkdir", path, syscall.EROFS)
	case FaultPermission:
		c.mkdirAllFails.Add(1)

		return pathError("mkdir", path, syscall.EACCES)
	}

	if c.should(c.config.MkdirAllFailRate) {
		c.mkdirAllFails.Add(1)

		return pathError("mkdir", path,
			c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS}))
	}

	return c.fs.MkdirAll(path, perm)
}

// --- Metadata ---

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.fault(path) == FaultIOError {
		c.statFails.Add(1)

		return nil, pathError("stat", path, syscall.EIO)
	}

	if c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return nil, pathError("stat", path, c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO}))
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	_, err := c.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

// Remove is never faulted; tests use it for cleanup.
func (c *Chaos) Remove(path string) error {
	return c.fs.Remove(path)
}

// chaosFile wraps a [File] and injects read, write and sync faults.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

func (cf *chaosFile) Read(buf []byte) (int, error) {
	if cf.chaos.fault(cf.path) == FaultIOError || cf.chaos.should(cf.chaos.config.ReadFailRate) {
		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	return cf.f.Read(buf)
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	switch cf.chaos.fault(cf.path) {
	case FaultIOError:
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, syscall.EIO)
	case FaultNoSpace:
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, syscall.ENOSPC)
	case FaultReadOnly:
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, syscall.EROFS)
	}

	if cf.chaos.should(cf.chaos.config.WriteFailRate) {
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path,
			cf.chaos.pick([]syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT}))
	}

	if len(data) > 1 && cf.chaos.should(cf.chaos.config.PartialWriteRate) {
		cf.chaos.partialWrites.Add(1)

		cutoff := cf.chaos.randIntn(len(data)-1) + 1 // [1, len(data)-1]

		wrote, err := cf.f.Write(data[:cutoff])
		if err != nil {
			return wrote, err
		}

		return wrote, pathError("write", cf.path, syscall.EIO)
	}

	return cf.f.Write(data)
}

func (cf *chaosFile) Close() error {
	return cf.f.Close()
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	return cf.f.Stat()
}

func (cf *chaosFile) Sync() error {
	if cf.chaos.fault(cf.path) == FaultIOError || cf.chaos.should(cf.chaos.config.SyncFailRate) {
		cf.chaos.syncFails.Add(1)

		return pathError("sync", cf.path, syscall.EIO)
	}

	return cf.f.Sync()
}

// Compile-time interface checks.
var (
	_ FS   = (*Chaos)(nil)
	_ File = (*chaosFile)(nil)
)
