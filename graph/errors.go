package graph

import "fmt"

// NoCommonAncestorError is returned by FindUniqueLCA when two revisions
// share no ancestor at all.
type NoCommonAncestorError struct {
	A, B RevisionID
}

func (e *NoCommonAncestorError) Error() string {
	return fmt.Sprintf("no common ancestor between %q and %q", e.A, e.B)
}

// InvalidRevisionIDError is raised when a nil/empty entry is found in a
// revision's parent list.
type InvalidRevisionIDError struct {
	Context RevisionID
}

func (e *InvalidRevisionIDError) Error() string {
	return fmt.Sprintf("invalid (nil) revision id referenced from %q", e.Context)
}

// algorithmInvariantError marks an assertion failure: a bug in the
// searcher's bookkeeping, not a user-facing error.
type algorithmInvariantError struct {
	msg string
}

func (e *algorithmInvariantError) Error() string {
	return "graph algorithm invariant violated: " + e.msg + " (this is a bug, please report it)"
}
