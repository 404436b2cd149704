package controldir

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/brennie/revctl/internal/fsutil"
	"github.com/pkg/errors"
)

// FileDir is the real-filesystem Dir a Prober or ControlDir probes and
// writes control files through, as opposed to the in-memory MemoryDir
// used by tests. Every check it makes before touching disk — is this
// name a plain file, is the base path usable as a directory, is the
// base empty enough to initialize into — is done with
// internal/fsutil's IsRegular/IsDir/IsEmptyDirOrNotExist rather than a
// bare os.Stat, the way the teacher's analyzer.go and context.go guard
// a manifest path and a candidate import directory respectively
// before reading them.
type FileDir struct {
	base string
}

// NewFileDir returns a FileDir rooted at base. base need not exist yet.
func NewFileDir(base string) *FileDir {
	return &FileDir{base: base}
}

// Exists reports whether name is a regular control file under the
// base directory. A name that exists but is a directory is reported
// as absent rather than erroring, since a Prober only ever cares about
// plain control files.
func (d *FileDir) Exists(name string) (bool, error) {
	ok, err := fsutil.IsRegular(filepath.Join(d.base, name))
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// ReadFile reads the control file at name, failing with
// os.ErrNotExist if it is missing. A name that is a directory fails
// with the wrapped error from the regular-file check instead.
func (d *FileDir) ReadFile(name string) ([]byte, error) {
	path := filepath.Join(d.base, name)
	ok, err := fsutil.IsRegular(path)
	if err != nil {
		return nil, errors.Wrapf(err, "controldir: probing %q", path)
	}
	if !ok {
		return nil, os.ErrNotExist
	}
	return ioutil.ReadFile(path)
}

// WriteFile writes a control file at name, creating the base
// directory first if it does not yet exist. It refuses to write into
// a base path that exists but is not a directory.
func (d *FileDir) WriteFile(name string, data []byte) error {
	isDir, err := fsutil.IsDir(d.base)
	if err != nil {
		return errors.Wrapf(err, "controldir: probing base directory %q", d.base)
	}
	if !isDir {
		if _, statErr := os.Stat(d.base); statErr == nil {
			return errors.Errorf("controldir: %q exists and is not a directory", d.base)
		}
		if err := os.MkdirAll(d.base, 0755); err != nil {
			return errors.Wrapf(err, "controldir: creating base directory %q", d.base)
		}
	}
	return ioutil.WriteFile(filepath.Join(d.base, name), data, 0644)
}

// EnsureEmptyDestination reports whether base is empty or does not yet
// exist, mirroring bzrlib's refusal to initialize a new ControlDir on
// top of an unrelated, already-populated directory.
func (d *FileDir) EnsureEmptyDestination() (bool, error) {
	return fsutil.IsEmptyDirOrNotExist(d.base)
}
