package repo

import (
	"fmt"

	"github.com/brennie/revctl"
)

// IncompatibleRepositoriesError is returned by Fetch when the source
// and target repositories cannot exchange a stream directly — e.g. a
// rich-root target with no way to derive root texts from a non-rich-root
// source and an empty fetch.
type IncompatibleRepositoriesError struct {
	Reason string
}

func (e *IncompatibleRepositoriesError) Error() string {
	return "repo: incompatible repositories: " + e.Reason
}

// UnresolvedFetchError is returned when the sink's second insertion pass
// still leaves keys unresolved: per the fetch protocol this is a fatal
// assertion failure, not a recoverable condition.
type UnresolvedFetchError struct {
	Keys []string
}

func (e *UnresolvedFetchError) Error() string {
	return fmt.Sprintf("repo: %d keys unresolved after second insertion pass: %v", len(e.Keys), e.Keys)
}

// GhostEncounteredError is returned when find_ghosts is false and the
// ancestry walk for the requested revisions hits a missing parent.
type GhostEncounteredError struct {
	RevisionID revctl.RevisionID
}

func (e *GhostEncounteredError) Error() string {
	return fmt.Sprintf("repo: ghost revision %q encountered with find_ghosts disabled", e.RevisionID)
}
