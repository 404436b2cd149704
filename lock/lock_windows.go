//go:build windows

package lock

import "os"

// osSharedLock on Windows relies on the default, non-exclusive file
// sharing mode os.OpenFile requests; a true shared advisory lock would
// need the win32 LockFileEx APIs bzrlib's _w32c_ReadLock/_ctypes_ReadLock
// reach for, which this module does not vendor a binding for.
type osSharedLock struct {
	f *os.File
}

func openShared(path string) (*osSharedLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &LockFailedError{Path: path, Reason: err.Error()}
	}
	return &osSharedLock{f: f}, nil
}

func (l *osSharedLock) upgrade() error   { return nil }
func (l *osSharedLock) downgrade() error { return nil }

func (l *osSharedLock) close() error {
	return l.f.Close()
}
