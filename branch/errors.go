package branch

import (
	"fmt"

	"github.com/brennie/revctl"
)

// DivergedBranchesError reports that two branches' mainline histories
// share a common prefix but then disagree, so a plain pull cannot
// fast-forward without an explicit overwrite.
type DivergedBranchesError struct {
	Self  []revctl.RevisionID
	Other []revctl.RevisionID
}

func (e *DivergedBranchesError) Error() string {
	return "branch: branches have diverged"
}

// InvalidRevisionNumberError reports a revno outside [1, Branch.Revno()]
// (0 is a valid revno for the null revision and never triggers this).
type InvalidRevisionNumberError struct {
	Revno int
}

func (e *InvalidRevisionNumberError) Error() string {
	return fmt.Sprintf("branch: invalid revision number %d", e.Revno)
}

// NoSuchRevisionError reports a revision-id absent from a branch's
// mainline history, where one was required (e.g. RevisionIDToRevno).
type NoSuchRevisionError struct {
	RevisionID revctl.RevisionID
}

func (e *NoSuchRevisionError) Error() string {
	return fmt.Sprintf("branch: no such revision %q in mainline history", e.RevisionID)
}
