// Package transport is the storage-agnostic surface every ControlDir,
// Branch, and Repository talks to instead of touching a filesystem
// directly: every path it takes is relative to the transport's own
// base, so the rest of the module never has to know whether that base
// is a local directory or something remote.
//
// Grounded on bzrlib's Transport (original_source/bzrlib/transport/local.py
// and http.py implement it; the abstract base class itself was not
// part of the retrieval material). LocalTransport's method set and
// behavior follow LocalTransport in local.py directly; the interface
// it satisfies is shaped from what both local.py and http.py
// implement in common.
package transport

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brennie/revctl/atomicfile"
	"github.com/brennie/revctl/lock"
	"github.com/karrick/godirwalk"
	"github.com/sdboyer/constext"
)

// Transport is the set of operations a storage backend provides to
// the rest of the module.
type Transport interface {
	Get(relpath string) (io.ReadCloser, error)
	GetRange(relpath string, offset, length int64) (io.ReadCloser, error)
	Put(relpath string, r io.Reader) error
	Append(relpath string, r io.Reader) error
	Mkdir(relpath string) error
	Rename(relpathFrom, relpathTo string) error
	Delete(relpath string) error
	ListDir(relpath string) ([]string, error)
	Stat(relpath string) (os.FileInfo, error)
	Has(relpath string) bool
	Clone(offset string) Transport
	Abspath(relpath string) string
	LockRead(relpath string) (*lock.ReadLock, error)
	LockWrite(relpath string) (*lock.WriteLock, error)
}

// LocalTransport implements Transport over the local filesystem,
// rooted at Base.
type LocalTransport struct {
	Base string
}

// New returns a LocalTransport rooted at base, accepting and
// stripping a "file://" prefix the way bzrlib's LocalTransport does,
// and resolving the result to an absolute path.
func New(base string) *LocalTransport {
	base = strings.TrimPrefix(base, "file://")
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return &LocalTransport{Base: base}
}

// Abspath returns the absolute filesystem path for relpath.
func (t *LocalTransport) Abspath(relpath string) string {
	return filepath.Join(t.Base, filepath.FromSlash(relpath))
}

// Clone returns a new LocalTransport rooted at t.Base + offset; the
// local filesystem needs no connection state, so this is just a new
// value, as in LocalTransport.clone.
func (t *LocalTransport) Clone(offset string) Transport {
	if offset == "" {
		return &LocalTransport{Base: t.Base}
	}
	return &LocalTransport{Base: t.Abspath(offset)}
}

// Has reports whether relpath exists.
func (t *LocalTransport) Has(relpath string) bool {
	_, err := os.Stat(t.Abspath(relpath))
	return err == nil
}

// Get opens relpath for reading.
func (t *LocalTransport) Get(relpath string) (io.ReadCloser, error) {
	path := t.Abspath(relpath)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NoSuchFileError{Path: path}
		}
		return nil, localError("get", path, err)
	}
	return f, nil
}

// GetRange opens relpath and returns a reader limited to length bytes
// starting at offset, for callers (a weave reconstruction, a partial
// fetch) that only need one record out of a larger file.
func (t *LocalTransport) GetRange(relpath string, offset, length int64) (io.ReadCloser, error) {
	path := t.Abspath(relpath)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NoSuchFileError{Path: path}
		}
		return nil, localError("get_range", path, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, localError("get_range", path, err)
	}
	return &rangeReader{r: io.LimitReader(f, length), c: f}, nil
}

type rangeReader struct {
	r io.Reader
	c io.Closer
}

func (r *rangeReader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *rangeReader) Close() error                { return r.c.Close() }

// Put writes the content of r to relpath atomically, via AtomicFile,
// mirroring LocalTransport.put's use of bzrlib's own AtomicFile.
func (t *LocalTransport) Put(relpath string, r io.Reader) error {
	path := t.Abspath(relpath)
	af, err := atomicfile.New(path, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return &NoSuchFileError{Path: path}
		}
		return localError("put", path, err)
	}
	if _, err := io.Copy(af, r); err != nil {
		af.Abort()
		return localError("put", path, err)
	}
	return af.Commit()
}

// Append writes the content of r to the end of relpath, creating it
// if necessary.
func (t *LocalTransport) Append(relpath string, r io.Reader) error {
	path := t.Abspath(relpath)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return &NoSuchFileError{Path: path}
		}
		return localError("append", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return localError("append", path, err)
	}
	return nil
}

// Mkdir creates the directory at relpath.
func (t *LocalTransport) Mkdir(relpath string) error {
	path := t.Abspath(relpath)
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return &FileExistsError{Path: path}
		}
		if os.IsNotExist(err) {
			return &NoSuchFileError{Path: path}
		}
		return localError("mkdir", path, err)
	}
	return nil
}

// Rename moves the entry at relpathFrom to relpathTo, mirroring
// LocalTransport.move (bzrlib's copy/move split is collapsed here:
// copy is just Get followed by Put at the call site).
func (t *LocalTransport) Rename(relpathFrom, relpathTo string) error {
	from, to := t.Abspath(relpathFrom), t.Abspath(relpathTo)
	if err := os.Rename(from, to); err != nil {
		if os.IsNotExist(err) {
			return &NoSuchFileError{Path: from}
		}
		return localError("rename", from, err)
	}
	return nil
}

// Delete removes the entry at relpath.
func (t *LocalTransport) Delete(relpath string) error {
	path := t.Abspath(relpath)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return &NoSuchFileError{Path: path}
		}
		return localError("delete", path, err)
	}
	return nil
}

// ListDir returns the immediate (non-recursive) children of relpath,
// mirroring LocalTransport.list_dir's os.listdir, but through
// godirwalk's single-directory reader rather than the standard
// library's directory-entry API (or, as the teacher's own earlier
// pkgtree.DirWalk did it, a hand-rolled breadth-first lstat queue) for
// the unsorted, syscall-batched read it gives on a large directory.
func (t *LocalTransport) ListDir(relpath string) ([]string, error) {
	path := t.Abspath(relpath)
	names, err := godirwalk.ReadDirnames(path, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NoSuchFileError{Path: path}
		}
		return nil, localError("list_dir", path, err)
	}
	return names, nil
}

// Stat returns file information for relpath.
func (t *LocalTransport) Stat(relpath string) (os.FileInfo, error) {
	path := t.Abspath(relpath)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NoSuchFileError{Path: path}
		}
		return nil, localError("stat", path, err)
	}
	return fi, nil
}

// LockRead takes a shared read lock on relpath, mirroring
// LocalTransport.lock_read.
func (t *LocalTransport) LockRead(relpath string) (*lock.ReadLock, error) {
	return lock.LockRead(t.Abspath(relpath))
}

// LockWrite takes an exclusive write lock on relpath, mirroring
// LocalTransport.lock_write.
func (t *LocalTransport) LockWrite(relpath string) (*lock.WriteLock, error) {
	return lock.LockWrite(t.Abspath(relpath))
}

// LockWriteTimeout behaves like LockWrite, except a contended lock is
// retried until timeout elapses (timeout <= 0 makes it identical to
// LockWrite), letting a caller honor config.Config.LockTimeout without
// this package needing to import config itself.
func (t *LocalTransport) LockWriteTimeout(relpath string, timeout time.Duration) (*lock.WriteLock, error) {
	return lock.LockWriteTimeout(t.Abspath(relpath), timeout)
}

// LockScope returns a context derived from ctx that additionally ends
// the moment the returned cancel function is called (the caller's
// signal that it is done with l, typically right before Unlock), so a
// long operation performed while holding l — a fetch, a multi-file
// write — can be bounded by the lock's own scope as well as by the
// caller's cancellation, without the operation needing to poll l
// itself.
//
// bzrlib has no equivalent of this (it predates Go-style cancellation
// contexts entirely); this is new plumbing built for spec §5's
// cancellation/suspension model, using constext.Cons to combine the
// two contexts' lifetimes rather than inventing that merge logic.
func LockScope(ctx context.Context, l *lock.WriteLock) (context.Context, context.CancelFunc) {
	scopeCtx, cancelScope := context.WithCancel(context.Background())
	merged, cancelMerged := constext.Cons(ctx, scopeCtx)
	return merged, func() {
		cancelScope()
		cancelMerged()
	}
}
