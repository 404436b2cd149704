// Package atomicfile provides a write-then-rename pattern for
// replacing a file's contents without ever leaving a reader to observe
// a half-written file: writers accumulate their output in a sibling
// temp file and only become visible to other processes on Commit,
// which renames the temp file over the target in a single filesystem
// operation.
//
// Grounded on bzrlib's atomicfile.py (AtomicFile), with the
// cross-device rename fallback adapted from the teacher's fs.go
// (fsutil.RenameWithFallback).
package atomicfile

import (
	"fmt"
	"os"

	"github.com/brennie/revctl/internal/fsutil"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Write, Commit, or Abort when called on an
// AtomicFile that has already been committed or aborted.
var ErrClosed = errors.New("atomicfile: already closed")

// AtomicFile is a file-like object that stages its writes in a
// temporary sibling file and only replaces the real target when
// Commit is called. If it is abandoned without a Commit, Abort (or a
// bare Close) removes the temporary file and leaves the target
// untouched.
type AtomicFile struct {
	filename string
	tmpname  string
	mode     os.FileMode
	hasMode  bool

	f      *os.File
	closed bool
}

// New creates the temporary file that will eventually replace
// filename. mode is used as the new file's permissions if filename
// does not already exist; if it does exist, Commit copies its mode
// instead, ignoring this argument.
func New(filename string, mode os.FileMode) (*AtomicFile, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	tmpname := fmt.Sprintf("%s.%d.%s.tmp", filename, os.Getpid(), hostname)

	f, err := os.OpenFile(tmpname, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return nil, errors.Wrap(err, "atomicfile: creating temp file")
	}

	return &AtomicFile{filename: filename, tmpname: tmpname, mode: mode, f: f}, nil
}

// Write appends p to the staged contents. It implements io.Writer.
func (af *AtomicFile) Write(p []byte) (int, error) {
	if af.closed {
		return 0, ErrClosed
	}
	return af.f.Write(p)
}

// Commit flushes the staged contents and atomically replaces filename
// with them. If filename already exists, the replacement keeps its
// original permission bits; otherwise the mode given to New is used.
func (af *AtomicFile) Commit() error {
	if af.closed {
		return ErrClosed
	}
	af.closed = true

	if err := af.f.Close(); err != nil {
		os.Remove(af.tmpname)
		return errors.Wrap(err, "atomicfile: closing temp file")
	}

	if fi, err := os.Lstat(af.filename); err == nil {
		if err := os.Chmod(af.tmpname, fi.Mode()); err != nil {
			os.Remove(af.tmpname)
			return errors.Wrap(err, "atomicfile: preserving original mode")
		}
	}

	if err := fsutil.RenameWithFallback(af.tmpname, af.filename); err != nil {
		os.Remove(af.tmpname)
		return errors.Wrap(err, "atomicfile: renaming into place")
	}
	return nil
}

// Abort discards the staged contents; filename is left untouched.
func (af *AtomicFile) Abort() error {
	if af.closed {
		return ErrClosed
	}
	af.closed = true

	af.f.Close()
	if err := os.Remove(af.tmpname); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "atomicfile: removing temp file")
	}
	return nil
}

// Close aborts if neither Commit nor Abort has been called yet. It is
// safe to call Close after Commit or Abort; it is then a no-op.
func (af *AtomicFile) Close() error {
	if af.closed {
		return nil
	}
	return af.Abort()
}
