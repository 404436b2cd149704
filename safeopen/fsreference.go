package safeopen

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/vcs"
)

// referenceFileName is the control file a branch reference stores its
// target location in, mirroring bzrlib's "branch-reference" file
// (read by ControlDir.get_branch_reference in controldir.py).
const referenceFileName = "branch-reference"

// FSReferenceResolver implements ReferenceResolver over local
// filesystem paths: a path is treated as a real repository, not a
// reference, the moment vcs.DetectVcsFromFS recognizes a working-copy
// marker (.git, .svn, .hg, .bzr) underneath it; only once none of
// those are present does it look for a branch-reference pointer file,
// mirroring bzrlib's distinction between an actual ControlDir and one
// that merely redirects to another location.
type FSReferenceResolver struct{}

// FollowReference returns the target location recorded in path's
// branch-reference file, or "" if path is a real, detectable
// repository or carries no reference file at all.
func (FSReferenceResolver) FollowReference(path string) (string, error) {
	if _, err := vcs.DetectVcsFromFS(path); err == nil {
		return "", nil
	}

	data, err := ioutil.ReadFile(filepath.Join(path, referenceFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
