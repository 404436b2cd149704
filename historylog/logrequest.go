// Package historylog turns a branch's revision graph into an ordered
// sequence of log entries: the revisions a caller asked for, in the
// order they asked for them, each optionally carrying the delta and
// diff against its predecessor and filtered by commit message or the
// files it touched.
//
// Grounded on bzrlib's log.py (make_log_request_dict, Logger and
// _DefaultLogGenerator, make_log_rev_iterator's adapter chain), built
// atop the branch, repo, and revision packages this one composes
// rather than owning any storage of its own.
package historylog

import "github.com/brennie/revctl/revision"

// RevisionID and FileID alias the shared identifier types.
type RevisionID = revision.RevisionID
type FileID = revision.FileID

// Direction controls whether log entries come out newest-first or
// oldest-first.
type Direction int

const (
	// Reverse produces entries newest first; this is the default.
	Reverse Direction = iota
	// Forward produces entries oldest first.
	Forward
)

// LogRequest configures one log generation: which revisions to
// consider, how merged-in history is represented, and which
// per-revision detail to attach.
//
// Grounded on bzrlib's make_log_request_dict and
// _apply_log_request_defaults.
type LogRequest struct {
	// Direction selects newest-first (the default) or oldest-first
	// output.
	Direction Direction

	// SpecificFileIDs restricts the log to revisions that touched one
	// of these files; empty means the whole tree.
	SpecificFileIDs []FileID

	// StartRevision and EndRevision bound the mainline revno range
	// (inclusive, per spec.md); the zero value for either means
	// unbounded in that direction. Both must name a mainline
	// revision: Branch.RevisionIDToRevno has no answer for anything merged in rather
	// than directly committed to the branch.
	StartRevision RevisionID
	EndRevision   RevisionID

	// Limit caps the number of entries returned after every other
	// filter has run; zero means unbounded.
	Limit int

	// MessageSearch, given, is a regular expression a revision's
	// commit message must match (case-insensitively) to survive.
	MessageSearch string

	// Levels controls how much merged-in history is shown: 1 (the
	// default) shows only the mainline, 0 shows every level, and any
	// n > 1 shows nested merges no more than n levels deep.
	Levels int

	// DeltaType selects whether per-revision deltas are attached to
	// the result: "" for none, "full" for every changed path,
	// "partial" to restrict the delta to SpecificFileIDs.
	DeltaType string

	// DiffType mirrors DeltaType for unified text diffs against each
	// revision's first parent.
	DiffType string
}

// DefaultLogRequest returns the request bzrlib's log command issues
// with no options given: newest first, mainline only, no delta or
// diff attached.
func DefaultLogRequest() LogRequest {
	return LogRequest{Direction: Reverse, Levels: 1}
}
