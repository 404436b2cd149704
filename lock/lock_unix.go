//go:build !windows

package lock

import (
	"os"
	"syscall"
)

// osSharedLock wraps the file descriptor a shared (read) lock is held
// against, since github.com/theckman/go-flock (at the version vendored
// here) only exposes an exclusive lock.
type osSharedLock struct {
	f *os.File
}

func openShared(path string) (*osSharedLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &LockFailedError{Path: path, Reason: err.Error()}
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, &LockContentionError{Path: path}
	}
	return &osSharedLock{f: f}, nil
}

// upgrade takes the exclusive lock on the same descriptor without
// closing it, mirroring fcntl_TemporaryWriteLock's reuse of the
// already-open file.
func (l *osSharedLock) upgrade() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func (l *osSharedLock) downgrade() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB)
}

func (l *osSharedLock) close() error {
	syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	return l.f.Close()
}
