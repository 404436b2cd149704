package historylog

import (
	"strconv"
	"strings"
)

// candidate is one revision selected for the log, before its Revision
// object, delta, or diff have been fetched.
type candidate struct {
	RevisionID RevisionID
	Revno      string
	MergeDepth int
}

// viewRevisions selects and orders the candidate revisions for req,
// newest first, before direction or limit are applied.
//
// bzrlib computes this (and the dotted revision numbers merge
// revisions are displayed with) via tsort.merge_sort, a topological
// sort that tracks depth-first merge order; that module was not part
// of the material available to build this from. The scheme below is
// an originally engineered depth-first walk over each revision's
// parents instead of a literal port: mainline revisions sit at depth
// 0 and are numbered by their revno ("7"), and each merged-in
// ancestry is nested one level deeper than the mainline revision that
// merged it in and numbered off that revno ("7.1.1", "7.1.2", ...). It
// produces the same shape of output as bzr's own log (depth increases
// going into a merge, dotted revnos group an ancestry under the
// revision that merged it) without claiming to match bzr's exact
// numbering in every corner case a full merge-sort would cover.
func (g *Generator) viewRevisions(req LogRequest) ([]candidate, error) {
	history, err := g.Branch.RevisionHistory()
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	startRevno, endRevno, err := g.resolveRevnoRange(history, req)
	if err != nil {
		return nil, err
	}

	if req.Levels == 1 {
		var out []candidate
		for revno := endRevno; revno >= startRevno; revno-- {
			out = append(out, candidate{
				RevisionID: history[revno-1],
				Revno:      strconv.Itoa(revno),
				MergeDepth: 0,
			})
		}
		return out, nil
	}

	// Mainline revisions start out marked seen so that a merged-in
	// ancestry stops where it reaches the mainline; each is unmarked
	// just before its own turn in the loop below.
	seen := map[RevisionID]bool{}
	for _, rev := range history {
		seen[rev] = true
	}
	var out []candidate
	for revno := len(history); revno >= 1; revno-- {
		rev := history[revno-1]
		delete(seen, rev)
		entries, err := g.walkRevision(rev, 0, strconv.Itoa(revno), nil, seen, req.Levels)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}

	if startRevno == 1 && endRevno == len(history) {
		return out, nil
	}
	var filtered []candidate
	for _, c := range out {
		mainline := c.Revno
		if i := strings.IndexByte(c.Revno, '.'); i >= 0 {
			mainline = c.Revno[:i]
		}
		n, err := strconv.Atoi(mainline)
		if err != nil {
			continue
		}
		if n >= startRevno && n <= endRevno {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// resolveRevnoRange turns req's start/end revisions into a mainline
// revno range, defaulting to the whole history.
func (g *Generator) resolveRevnoRange(history []RevisionID, req LogRequest) (start, end int, err error) {
	start, end = 1, len(history)
	if req.StartRevision != "" {
		start, err = g.Branch.RevisionIDToRevno(req.StartRevision)
		if err != nil {
			return 0, 0, err
		}
	}
	if req.EndRevision != "" {
		end, err = g.Branch.RevisionIDToRevno(req.EndRevision)
		if err != nil {
			return 0, 0, err
		}
	}
	return start, end, nil
}

// walkRevision emits id at (depth, revno from prefix and seq) and,
// before returning, walks every parent after the first one level
// deeper (a merged-in ancestry), then — only when this call is itself
// already inside a merged-in ancestry (depth > 0) — continues into
// id's own first parent at the same depth, so a merged branch's own
// history is walked in full rather than stopping after one revision.
// The top-level mainline loop in viewRevisions supplies depth 0's
// continuation itself, one mainline revno at a time, so depth 0 never
// recurses into its own first parent here.
func (g *Generator) walkRevision(id RevisionID, depth int, prefix string, seq *int, seen map[RevisionID]bool, maxLevels int) ([]candidate, error) {
	if id.IsNull() || seen[id] {
		return nil, nil
	}
	seen[id] = true

	revno := prefix
	if seq != nil {
		revno = prefix + "." + strconv.Itoa(*seq)
		*seq++
	}
	out := []candidate{{RevisionID: id, Revno: revno, MergeDepth: depth}}

	rev, err := g.Branch.Storage.GetRevision(id)
	if err != nil {
		return nil, err
	}

	if maxLevels == 0 || depth+1 < maxLevels {
		for mi := len(rev.ParentIDs) - 1; mi >= 1; mi-- {
			branchNum := len(rev.ParentIDs) - mi
			childSeq := 1
			sub, err := g.walkRevision(rev.ParentIDs[mi], depth+1, revno+"."+strconv.Itoa(branchNum), &childSeq, seen, maxLevels)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	if depth > 0 && len(rev.ParentIDs) > 0 {
		sub, err := g.walkRevision(rev.ParentIDs[0], depth, prefix, seq, seen, maxLevels)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// rebaseMergeDepth shifts every depth down by the shallowest depth
// present, so a view that starts mid-merge (a bounded revno range)
// still begins at depth 0.
func rebaseMergeDepth(view []candidate) []candidate {
	if len(view) == 0 {
		return view
	}
	min := view[0].MergeDepth
	for _, c := range view {
		if c.MergeDepth < min {
			min = c.MergeDepth
		}
	}
	if min == 0 {
		return view
	}
	out := make([]candidate, len(view))
	for i, c := range view {
		c.MergeDepth -= min
		out[i] = c
	}
	return out
}
