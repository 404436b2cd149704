// Package lock implements OS-level advisory locking of a single file
// path, distinguishing shared read access from exclusive write access,
// with reentrant accounting per process so that multiple callers in
// the same process can each hold a read lock on the same path at
// once.
//
// Grounded on bzrlib's lock.py (ReadLock/WriteLock over fcntl.lockf),
// adapted to Go's goroutine-safe accounting instead of Python's
// process-global _open_locks sets, and to github.com/theckman/go-flock
// for the actual OS write lock. The vendored go-flock predates shared
// (read) lock support, so shared-lock acquisition, upgrade, and
// downgrade are implemented directly against the platform's advisory
// locking primitive in lock_unix.go/lock_windows.go; see DESIGN.md.
package lock

import (
	"sync"
	"time"

	goflock "github.com/theckman/go-flock"
)

// lockPollInterval is how often LockWriteTimeout retries a contended
// write lock while its deadline has not yet passed.
const lockPollInterval = 50 * time.Millisecond

type entry struct {
	mu        sync.Mutex
	writeHeld bool
	readers   int
	shared    *osSharedLock
}

var (
	registryMu sync.Mutex
	registry   = map[string]*entry{}
)

func getEntry(path string) *entry {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, ok := registry[path]
	if !ok {
		e = &entry{}
		registry[path] = e
	}
	return e
}

// WriteLock is an exclusive lock on a file path.
type WriteLock struct {
	path  string
	entry *entry
	flock *goflock.Flock
}

// LockWrite takes an exclusive lock on path, failing immediately with
// *LockContentionError if any read or write lock is already held on
// it, in this process or (for the OS-level lock) another.
func LockWrite(path string) (*WriteLock, error) {
	e := getEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writeHeld || e.readers > 0 {
		return nil, &LockContentionError{Path: path}
	}

	fl := goflock.NewFlock(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, &LockFailedError{Path: path, Reason: err.Error()}
	}
	if !ok {
		return nil, &LockContentionError{Path: path}
	}

	e.writeHeld = true
	return &WriteLock{path: path, entry: e, flock: fl}, nil
}

// LockWriteTimeout behaves like LockWrite, except a *LockContentionError*
// is retried (polling every lockPollInterval) until timeout elapses
// instead of being returned immediately. timeout <= 0 is equivalent
// to a single LockWrite attempt. Any other error from LockWrite (e.g.
// *LockFailedError) is still returned immediately, since retrying a
// non-contention failure is not expected to help.
//
// This has no bzrlib precedent in this module's reference material
// (lock.py has no timeout/poll concept, and no lockdir.py exists in
// it); it is engineered here to give config.Config.LockTimeout
// somewhere to take effect.
func LockWriteTimeout(path string, timeout time.Duration) (*WriteLock, error) {
	if timeout <= 0 {
		return LockWrite(path)
	}

	deadline := time.Now().Add(timeout)
	for {
		w, err := LockWrite(path)
		if err == nil {
			return w, nil
		}
		if _, contended := err.(*LockContentionError); !contended {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(lockPollInterval)
	}
}

// Unlock releases the write lock.
func (w *WriteLock) Unlock() error {
	e := w.entry
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.writeHeld {
		return &LockNotHeldError{Path: w.path}
	}
	e.writeHeld = false
	return w.flock.Unlock()
}

// ReadLock is a shared lock on a file path; any number of ReadLocks
// may be held on the same path at once, by this process or others,
// but a ReadLock excludes every WriteLock.
type ReadLock struct {
	path  string
	entry *entry
}

// LockRead takes a shared lock on path, failing with
// *LockContentionError if a write lock is already held on it in this
// process.
func LockRead(path string) (*ReadLock, error) {
	e := getEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writeHeld {
		return nil, &LockContentionError{Path: path}
	}

	if e.readers == 0 {
		shared, err := openShared(path)
		if err != nil {
			return nil, err
		}
		e.shared = shared
	}
	e.readers++
	return &ReadLock{path: path, entry: e}, nil
}

// Unlock releases this read lock. The OS-level shared lock is only
// released once every reentrant reader in this process has unlocked.
func (r *ReadLock) Unlock() error {
	e := r.entry
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.entry == nil || e.readers == 0 {
		return &LockNotHeldError{Path: r.path}
	}
	e.readers--
	if e.readers == 0 {
		shared := e.shared
		e.shared = nil
		return shared.close()
	}
	return nil
}

// TemporaryWriteLock upgrades this read lock to a write lock without
// ever releasing the underlying OS lock, provided no other reader in
// this process also holds the path locked. It fails with
// *LockContentionError if another reader is present.
func (r *ReadLock) TemporaryWriteLock() (*TemporaryWriteLock, error) {
	e := r.entry
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readers != 1 {
		return nil, &LockContentionError{Path: r.path}
	}
	if err := e.shared.upgrade(); err != nil {
		return nil, &LockContentionError{Path: r.path}
	}
	return &TemporaryWriteLock{path: r.path, entry: e, read: r}, nil
}

// TemporaryWriteLock is a token returned by ReadLock.TemporaryWriteLock;
// call RestoreReadLock when done to return to holding only the read
// lock.
type TemporaryWriteLock struct {
	path  string
	entry *entry
	read  *ReadLock
}

// RestoreReadLock downgrades back to the original read lock.
func (t *TemporaryWriteLock) RestoreReadLock() (*ReadLock, error) {
	e := t.entry
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.shared.downgrade(); err != nil {
		return nil, err
	}
	return t.read, nil
}
