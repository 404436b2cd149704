// Package branch implements the mainline revision history of a single
// branch: an ordered list of revision-ids backed by a small set of
// control files (the history itself, plus single-line config values
// like the parent and push locations), together with the pull/update
// protocol that keeps one branch's history in sync with another's.
//
// Grounded on bzrlib's Branch/BzrBranch (original_source/bzrlib/branch.py)
// and spec.md §4.5, composed atop the repo package's Fetch and the
// graph package's merge-order search.
package branch

import (
	"strings"

	"github.com/brennie/revctl"
	"github.com/brennie/revctl/internal/rlog"
	"github.com/brennie/revctl/repo"
	"github.com/pkg/errors"
)

// RevisionID aliases the shared identifier type.
type RevisionID = revctl.RevisionID

// NullRevision is the distinguished root of all history.
const NullRevision = revctl.NullRevision

const (
	revisionHistoryFile = "revision-history"
	parentFile          = "parent"
	legacyPullFile      = "pull"
	legacyXPullFile     = "x-pull"
	pushLocationFile    = "push-location"
)

// parentLocationCandidates lists, in priority order, the control files
// consulted by GetParent: the canonical name first, falling back to
// two legacy names from older formats, for migration.
var parentLocationCandidates = []string{parentFile, legacyPullFile, legacyXPullFile}

// pushLocationCandidates lists, in priority order, the control files
// consulted by PushLocation: its own modern file first, then the same
// parent-location fallback chain GetParent uses (a branch with no
// push location configured pushes to its parent by default).
var pushLocationCandidates = append([]string{pushLocationFile}, parentLocationCandidates...)

// ErrNoSuchControlFile is returned by a ControlFiles.ReadFile
// implementation when the named file has never been written.
var ErrNoSuchControlFile = errors.New("branch: no such control file")

// ControlFiles is the persistence surface a Branch needs: the ordered
// mainline history and a handful of single-line config values.
// MemoryControlFiles is the only implementation in this module; a
// ControlDir uses whichever ControlFiles its caller passes to
// CreateBranch. WriteFile is expected to be all-or-nothing regardless
// of the backing implementation.
type ControlFiles interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// MemoryControlFiles is an in-memory ControlFiles, useful for tests
// and for programs that only need a branch for the lifetime of one
// process.
type MemoryControlFiles struct {
	files map[string][]byte
}

// NewMemoryControlFiles returns an empty in-memory control file set.
func NewMemoryControlFiles() *MemoryControlFiles {
	return &MemoryControlFiles{files: map[string][]byte{}}
}

func (m *MemoryControlFiles) ReadFile(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, ErrNoSuchControlFile
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryControlFiles) WriteFile(name string, data []byte) error {
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// Branch is the mainline history of revisions committed to one line of
// development, plus the repository holding their content.
type Branch struct {
	Storage *repo.Repository
	files   ControlFiles

	// Logger receives progress output for operations that can take a
	// while (Pull, UpdateRevisions). A nil Logger discards everything.
	Logger *rlog.Logger
}

// New returns a Branch backed by storage and persisted via files.
func New(storage *repo.Repository, files ControlFiles) *Branch {
	return &Branch{Storage: storage, files: files}
}

// RevisionHistory returns the ordered sequence of revision-ids on this
// branch's mainline, oldest first. An empty (never-initialized) branch
// returns a nil slice.
func (b *Branch) RevisionHistory() ([]RevisionID, error) {
	data, err := b.files.ReadFile(revisionHistoryFile)
	if errors.Is(err, ErrNoSuchControlFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "branch: reading revision-history")
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	history := make([]RevisionID, len(lines))
	for i, l := range lines {
		history[i] = RevisionID(l)
	}
	return history, nil
}

// SetRevisionHistory replaces the branch's entire mainline history.
func (b *Branch) SetRevisionHistory(history []RevisionID) error {
	lines := make([]string, len(history))
	for i, r := range history {
		lines[i] = string(r)
	}
	return b.files.WriteFile(revisionHistoryFile, []byte(strings.Join(lines, "\n")))
}

// AppendRevision extends the mainline history with ids, in order.
func (b *Branch) AppendRevision(ids ...RevisionID) error {
	history, err := b.RevisionHistory()
	if err != nil {
		return err
	}
	return b.SetRevisionHistory(append(history, ids...))
}

// Revno returns the number of revisions committed to this branch.
func (b *Branch) Revno() (int, error) {
	history, err := b.RevisionHistory()
	if err != nil {
		return 0, err
	}
	return len(history), nil
}

// LastRevision returns the tip of the mainline, or NullRevision if the
// branch has no history yet.
func (b *Branch) LastRevision() (RevisionID, error) {
	history, err := b.RevisionHistory()
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return NullRevision, nil
	}
	return history[len(history)-1], nil
}

// LastRevisionInfo returns both the revno and the revision-id of the
// mainline tip in one call.
func (b *Branch) LastRevisionInfo() (int, RevisionID, error) {
	history, err := b.RevisionHistory()
	if err != nil {
		return 0, "", err
	}
	if len(history) == 0 {
		return 0, NullRevision, nil
	}
	return len(history), history[len(history)-1], nil
}

// RevisionIDToRevno returns the 1-based position of id in the mainline
// history, or 0 if id is NullRevision or empty.
func (b *Branch) RevisionIDToRevno(id RevisionID) (int, error) {
	if id == "" || id.IsNull() {
		return 0, nil
	}
	history, err := b.RevisionHistory()
	if err != nil {
		return 0, err
	}
	for i, r := range history {
		if r == id {
			return i + 1, nil
		}
	}
	return 0, &NoSuchRevisionError{RevisionID: id}
}

// GetRevID returns the revision-id at the given 1-based revno, or
// NullRevision for revno 0.
func (b *Branch) GetRevID(revno int) (RevisionID, error) {
	if revno == 0 {
		return NullRevision, nil
	}
	history, err := b.RevisionHistory()
	if err != nil {
		return "", err
	}
	if revno < 0 || revno > len(history) {
		return "", &InvalidRevisionNumberError{Revno: revno}
	}
	return history[revno-1], nil
}

// GetParent returns the branch's default pull/push/missing location,
// or "" if none has been set. It reads the canonical "parent" control
// file first, falling back to the legacy "pull" and "x-pull" names for
// migration, per spec §9's recommendation.
func (b *Branch) GetParent() (string, error) {
	for _, name := range parentLocationCandidates {
		loc, err := b.readLocation(name)
		if err != nil {
			return "", err
		}
		if loc != "" {
			return loc, nil
		}
	}
	return "", nil
}

// SetParent records url as the branch's default location.
func (b *Branch) SetParent(url string) error {
	return b.files.WriteFile(parentFile, []byte(url+"\n"))
}

// PushLocation returns the location this branch pushes to by default,
// falling back through the parent location and then the legacy pull
// and x-pull control files when push-location was never set.
func (b *Branch) PushLocation() (string, error) {
	for _, name := range pushLocationCandidates {
		loc, err := b.readLocation(name)
		if err != nil {
			return "", err
		}
		if loc != "" {
			return loc, nil
		}
	}
	return "", nil
}

// SetPushLocation always writes to the modern push-location control
// file; it never touches parent or x-pull.
func (b *Branch) SetPushLocation(location string) error {
	return b.files.WriteFile(pushLocationFile, []byte(location+"\n"))
}

func (b *Branch) readLocation(name string) (string, error) {
	data, err := b.files.ReadFile(name)
	if errors.Is(err, ErrNoSuchControlFile) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "branch: reading %s", name)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// MissingRevisions returns the revisions present in other but not in
// self, provided the two histories share a common prefix (neither has
// a revision at some position the other also has but disagrees on).
// stop limits how far into other's history to look; the zero value
// means "all of other's history". Unlike bzrlib's revno-typed
// stop_revision, stop is a RevisionID: callers holding a revno must
// resolve it first via other.GetRevID.
func (b *Branch) MissingRevisions(other *Branch, stop RevisionID) ([]RevisionID, error) {
	selfHistory, err := b.RevisionHistory()
	if err != nil {
		return nil, err
	}
	otherHistory, err := other.RevisionHistory()
	if err != nil {
		return nil, err
	}

	commonIndex := len(selfHistory)
	if len(otherHistory) < commonIndex {
		commonIndex = len(otherHistory)
	}
	commonIndex--
	if commonIndex >= 0 && selfHistory[commonIndex] != otherHistory[commonIndex] {
		return nil, &DivergedBranchesError{Self: selfHistory, Other: otherHistory}
	}

	stopIndex := len(otherHistory)
	if stop != "" && !stop.IsNull() {
		revno, err := other.RevisionIDToRevno(stop)
		if err != nil {
			return nil, err
		}
		stopIndex = revno
	}
	if stopIndex > len(otherHistory) {
		return nil, &NoSuchRevisionError{RevisionID: stop}
	}
	if stopIndex <= len(selfHistory) {
		return nil, nil
	}
	return append([]RevisionID(nil), otherHistory[len(selfHistory):stopIndex]...), nil
}

// fetchFrom replicates the ancestry of stopRevision from other's
// storage into this branch's storage.
func (b *Branch) fetchFrom(other *Branch, stopRevision RevisionID) error {
	_, err := b.Storage.Fetch(other.Storage, repo.FetchOptions{
		LastRevision: stopRevision,
		FindGhosts:   false,
	})
	return err
}

// UpdateRevisions fetches and appends perfect-fit revisions from
// other, stopping at stopRevision (other's tip, if empty). It returns
// *DivergedBranchesError without changing this branch's history when
// the two histories have diverged; the revisions fetched from other
// before the divergence was detected stay in this branch's storage.
// The caller decides whether to retry as an overwrite (see Pull).
func (b *Branch) UpdateRevisions(other *Branch, stopRevision RevisionID) error {
	if stopRevision == "" {
		tip, err := other.LastRevision()
		if err != nil {
			return err
		}
		stopRevision = tip
	}

	history, err := b.RevisionHistory()
	if err != nil {
		return err
	}
	for _, r := range history {
		if r == stopRevision {
			return nil
		}
	}

	if err := b.fetchFrom(other, stopRevision); err != nil {
		return err
	}

	missing, err := b.MissingRevisions(other, stopRevision)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	b.Logger.Notef("branch", "appending %d revision(s) up to %s", len(missing), stopRevision)
	return b.AppendRevision(missing...)
}

// Pull brings this branch up to date with source. If the histories
// have diverged, it fails with *DivergedBranchesError unless overwrite
// is true, in which case this branch's history (and the revisions it
// requires) is entirely replaced by source's.
func (b *Branch) Pull(source *Branch, overwrite bool) error {
	err := b.UpdateRevisions(source, "")
	if err == nil {
		return nil
	}
	if _, diverged := err.(*DivergedBranchesError); !diverged || !overwrite {
		return err
	}

	tip, err := source.LastRevision()
	if err != nil {
		return err
	}
	b.Logger.Notef("branch", "histories diverged, overwriting to %s", tip)
	if err := b.fetchFrom(source, tip); err != nil {
		return err
	}
	history, err := source.RevisionHistory()
	if err != nil {
		return err
	}
	return b.SetRevisionHistory(history)
}

// IterMergeSortedRevisions returns the ancestors of start (the
// mainline tip, if empty) that are not ancestors of stop, ordered by
// how they were actually merged into start (a left-parent-first
// depth walk) rather than a plain topological sort. stopRule
// "include" additionally includes stop itself; any other value
// (including the default "exclude") omits it.
func (b *Branch) IterMergeSortedRevisions(start, stop RevisionID, stopRule string) ([]RevisionID, error) {
	if start == "" {
		tip, err := b.LastRevision()
		if err != nil {
			return nil, err
		}
		start = tip
	}
	if start.IsNull() {
		return nil, nil
	}

	g := b.Storage.GetGraph()

	var excludeFrom []RevisionID
	if stop != "" && !stop.IsNull() {
		excludeFrom = []RevisionID{stop}
	}

	unique, err := g.FindUniqueAncestors(start, excludeFrom)
	if err != nil {
		return nil, err
	}

	// FindMergeOrder walks back from start looking for each revision
	// in lcaRevisions; start itself must be excluded from that set or
	// the walk stops as soon as it pops start without ever descending
	// into its parents.
	lookingFor := unique[:0]
	for _, r := range unique {
		if r != start {
			lookingFor = append(lookingFor, r)
		}
	}
	if stopRule == "include" && stop != "" && !stop.IsNull() {
		found := false
		for _, r := range lookingFor {
			if r == stop {
				found = true
				break
			}
		}
		if !found {
			lookingFor = append(lookingFor, stop)
		}
	}
	if len(lookingFor) == 0 {
		return []RevisionID{start}, nil
	}

	ordered, err := g.FindMergeOrder(start, lookingFor)
	if err != nil {
		return nil, err
	}
	return append([]RevisionID{start}, ordered...), nil
}
