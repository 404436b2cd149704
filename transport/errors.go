package transport

import (
	"fmt"

	"github.com/Masterminds/vcs"
)

// NoSuchFileError is returned when an operation names a path that
// does not exist, mirroring bzrlib's NoSuchFile.
type NoSuchFileError struct {
	Path string
}

func (e *NoSuchFileError) Error() string {
	return fmt.Sprintf("transport: no such file %q", e.Path)
}

// FileExistsError is returned by Mkdir when the target already
// exists, mirroring bzrlib's FileExists.
type FileExistsError struct {
	Path string
}

func (e *FileExistsError) Error() string {
	return fmt.Sprintf("transport: %q already exists", e.Path)
}

// localError wraps an OS-level failure that isn't one of the two
// named cases above as a Masterminds/vcs LocalError, so the failures
// wrapped here, regardless of which operation failed, can be told
// apart from a remote transport's failures by one type switch rather
// than by operation name. Errors from Put's commit step and from the
// lock methods are returned unwrapped.
func localError(op, path string, err error) error {
	return vcs.NewLocalError(fmt.Sprintf("transport: %s %q", op, path), err, "")
}
