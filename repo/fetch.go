package repo

import (
	"context"
	"sort"
	"strings"

	"github.com/brennie/revctl/graph"
	"github.com/brennie/revctl/revision"
	"github.com/brennie/revctl/store"
	"github.com/pkg/errors"
)

// keyID renders a store.Key as a collision-free map key (NUL-joined,
// matching the store package's own wire encoding), since Key.String()
// uses a human-readable ":" separator that a key component could
// itself contain.
func keyID(k store.Key) string { return strings.Join(k, "\x00") }

// FetchSpec pins down exactly which revisions to transfer, bypassing
// the last-revision ancestry computation: RequiredIDs must all be
// fetched (and any ghost among their ancestors is always fatal,
// independent of findGhosts); IfPresentIDs are fetched when present in
// the source but silently skipped otherwise. Mirrors bzrlib's
// SearchResult-as-fetch_spec case.
type FetchSpec struct {
	RequiredIDs  []RevisionID
	IfPresentIDs []RevisionID
}

// FetchOptions configures a Fetch call.
type FetchOptions struct {
	// Context bounds the fetch: if it is cancelled or its deadline
	// expires while the stream is still being assembled, Fetch stops
	// and returns ctx.Err() rather than continuing to completion. A
	// caller holding a transport.WriteLock for the duration of the
	// fetch should pass the context returned by transport.LockScope,
	// so the fetch also aborts the moment the lock's scope ends.
	// Leave nil for a fetch that only the caller's own cancellation
	// (if any) can interrupt.
	Context context.Context
	// LastRevision pins fetch to the ancestry of one revision. Leave
	// empty to fall back to SourceTips; set to NullRevision to request
	// an explicitly empty fetch.
	LastRevision RevisionID
	// SourceTips is consulted only when Spec is nil and LastRevision is
	// empty: fetch every ancestor of these revisions not already in the
	// target. Typically the source's branches' last_revision_info.
	SourceTips []RevisionID
	FindGhosts bool
	Spec       *FetchSpec
}

// Fetch replicates the revision set selected by opts from src into r,
// as a stream of revision, inventory, and per-file text records, per
// the four-step fetch protocol: select the revision set, build the
// stream, insert it (a second, fatal-if-unresolved pass over anything
// deferred for missing parents), then synthesize root texts if src is
// non-rich-root and r is rich-root. Returns the keys still missing
// after the whole fetch (always empty on success) for symmetry with
// VersionedFile.InsertStream.
func (r *Repository) Fetch(src *Repository, opts FetchOptions) ([]store.Key, error) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	toFetch, err := r.selectRevisions(src, opts)
	if err != nil {
		return nil, err
	}
	if len(toFetch) == 0 {
		r.Logger.Notef("fetch", "already up to date")
		return nil, nil
	}
	r.Logger.Notef("fetch", "copying %d revision(s)", len(toFetch))

	records, rootsByRevision, err := src.buildStream(ctx, toFetch)
	if err != nil {
		return nil, err
	}

	revisionRecords, inventoryRecords, textRecords := splitStream(records)

	if missing, err := insertWithRetry(r.Revisions, revisionRecords); err != nil {
		return nil, err
	} else if len(missing) > 0 {
		return nil, unresolvedErr(missing)
	}
	if missing, err := insertWithRetry(r.Inventories, inventoryRecords); err != nil {
		return nil, err
	} else if len(missing) > 0 {
		return nil, unresolvedErr(missing)
	}
	if missing, err := insertWithRetry(r.Texts, textRecords); err != nil {
		return nil, err
	} else if len(missing) > 0 {
		return nil, unresolvedErr(missing)
	}

	if !src.RichRoot && r.RichRoot {
		if err := r.fetchRichRootUpgrade(toFetch, rootsByRevision); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func unresolvedErr(missing []store.Key) error {
	keys := make([]string, len(missing))
	for i, k := range missing {
		keys[i] = k.String()
	}
	return &UnresolvedFetchError{Keys: keys}
}

// insertWithRetry performs the sink's two-pass insertion: the first
// pass resolves everything it can, the second is purely to surface
// genuinely-unresolvable keys (an unresolved second pass is fatal per
// the protocol, but it's the caller's job to treat that as fatal —
// this just reports what's left).
func insertWithRetry(vf *store.VersionedFile, records []store.StreamRecord) ([]store.Key, error) {
	missing, err := vf.InsertStream(records)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}
	// Second pass: re-offer exactly the records that didn't resolve.
	// If it still can't make progress, those keys are the fatal result.
	var retry []store.StreamRecord
	byKey := make(map[string]store.StreamRecord, len(records))
	for _, rec := range records {
		byKey[keyID(rec.Key)] = rec
	}
	for _, k := range missing {
		if rec, ok := byKey[keyID(k)]; ok {
			retry = append(retry, rec)
		}
	}
	return vf.InsertStream(retry)
}

// selectRevisions implements the fetch protocol's priority order: an
// explicit fetch_spec wins; then last_revision == NULL (empty set);
// then an explicit last_revision (its ancestors not in the target);
// then neither (ancestors of the source's tips not in the target).
func (r *Repository) selectRevisions(src *Repository, opts FetchOptions) ([]RevisionID, error) {
	if opts.Spec != nil {
		return r.selectFromSpec(src, opts.Spec)
	}
	if opts.LastRevision == NullRevision {
		return nil, nil
	}
	if opts.LastRevision != "" {
		return r.selectAncestry(src, []RevisionID{opts.LastRevision}, opts.FindGhosts)
	}
	return r.selectAncestry(src, opts.SourceTips, opts.FindGhosts)
}

func (r *Repository) selectFromSpec(src *Repository, spec *FetchSpec) ([]RevisionID, error) {
	required, err := r.selectAncestry(src, spec.RequiredIDs, false)
	if err != nil {
		return nil, err
	}
	var present []RevisionID
	for _, id := range spec.IfPresentIDs {
		if _, err := src.Revisions.GetFulltext(revisionKey(id)); err == nil {
			present = append(present, id)
		}
	}
	if len(present) > 0 {
		more, err := r.selectAncestry(src, present, true)
		if err != nil {
			return nil, err
		}
		required = mergeUnique(required, more)
	}
	return required, nil
}

// selectAncestry returns the ancestors of seeds (inclusive), as known
// to src, that are not yet present in r, honoring the ghost policy.
func (r *Repository) selectAncestry(src *Repository, seeds []RevisionID, findGhosts bool) ([]RevisionID, error) {
	g := src.GetGraph()
	order, parents, err := g.IterAncestry(seeds)
	if err != nil {
		return nil, err
	}
	if !findGhosts {
		for rev, ps := range parents {
			if ps == nil {
				return nil, &GhostEncounteredError{RevisionID: rev}
			}
		}
	}
	var out []RevisionID
	for _, id := range order {
		if id.IsNull() {
			continue
		}
		if ps, ok := parents[id]; !ok || ps == nil {
			continue // ghost: nothing present anywhere to fetch
		}
		if _, err := r.Revisions.GetFulltext(revisionKey(id)); err == nil {
			continue // already present: idempotent re-fetch
		}
		out = append(out, id)
	}
	return out, nil
}

func mergeUnique(a, b []RevisionID) []RevisionID {
	seen := make(map[RevisionID]struct{}, len(a))
	out := append([]RevisionID(nil), a...)
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
			seen[id] = struct{}{}
		}
	}
	return out
}

// streamRecord tags a store.StreamRecord with which of the three
// stores it belongs to, so a single ordered stream can be split back
// apart for insertion into each store.
type streamRecord struct {
	kind   int // 0 = revision, 1 = inventory, 2 = text
	record store.StreamRecord
}

const (
	kindRevision = iota
	kindInventory
	kindText
)

// buildStream assembles, for each revision in toFetch, its revision
// record, its inventory record, and the per-file text records it
// introduced (inventory entries whose LastModifiedBy is that revision),
// returning the root file-id recorded per revision for later rich-root
// synthesis. It checks ctx before processing each revision, so a
// cancelled fetch stops assembling the stream rather than finishing a
// transfer the caller has already given up on.
func (src *Repository) buildStream(ctx context.Context, toFetch []RevisionID) ([]streamRecord, map[RevisionID]FileID, error) {
	var out []streamRecord
	rootByRevision := make(map[RevisionID]FileID, len(toFetch))

	for _, id := range toFetch {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, "repo: fetch cancelled")
		}

		rev, err := src.GetRevision(id)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "repo: fetching source revision %q", id)
		}
		revData, err := src.Revisions.GetFulltext(revisionKey(id))
		if err != nil {
			return nil, nil, err
		}
		parentKeys := make([]store.Key, len(rev.ParentIDs))
		for i, p := range rev.ParentIDs {
			parentKeys[i] = revisionKey(p)
		}
		out = append(out, streamRecord{kindRevision, store.StreamRecord{
			Key: revisionKey(id), Parents: parentKeys, Content: revData,
		}})

		inv, err := src.GetInventory(id)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "repo: fetching source inventory %q", id)
		}
		rootByRevision[id] = inv.RootID

		invData, err := src.Inventories.GetFulltext(store.Key{string(id)})
		if err != nil {
			return nil, nil, err
		}
		out = append(out, streamRecord{kindInventory, store.StreamRecord{
			Key: store.Key{string(id)}, Parents: append([]store.Key(nil), parentKeys...), Content: invData,
		}})

		parentInvs := make([]*revision.Inventory, 0, len(rev.ParentIDs))
		for _, pid := range rev.ParentIDs {
			pinv, err := src.RevisionTree(pid)
			if err != nil {
				return nil, nil, err
			}
			parentInvs = append(parentInvs, pinv)
		}

		for _, entry := range inv.Entries() {
			if entry.Kind != revision.KindFile || entry.LastModifiedBy != id {
				continue
			}
			textParentKeys, err := textParentsFor(entry.FileID, parentInvs)
			if err != nil {
				return nil, nil, err
			}
			content, err := src.Texts.GetFulltext(textKey(entry.FileID, id))
			if err != nil {
				return nil, nil, errors.Wrapf(err, "repo: fetching text %s@%q", entry.FileID, id)
			}
			out = append(out, streamRecord{kindText, store.StreamRecord{
				Key: textKey(entry.FileID, id), Parents: textParentKeys, Content: content,
			}})
		}
	}
	return out, rootByRevision, nil
}

// textParentsFor returns, for fileID, the text-store keys of the
// version it had in each parent inventory where it's present — i.e.
// the versions this revision's edit (if any) was made against.
func textParentsFor(fileID FileID, parentInvs []*revision.Inventory) ([]store.Key, error) {
	seen := map[string]struct{}{}
	var out []store.Key
	for _, pinv := range parentInvs {
		entry, ok := pinv.Get(fileID)
		if !ok {
			continue
		}
		key := textKey(fileID, entry.LastModifiedBy)
		if _, dup := seen[keyID(key)]; dup {
			continue
		}
		seen[keyID(key)] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}

func splitStream(records []streamRecord) (revs, invs, texts []store.StreamRecord) {
	for _, r := range records {
		switch r.kind {
		case kindRevision:
			revs = append(revs, r.record)
		case kindInventory:
			invs = append(invs, r.record)
		case kindText:
			texts = append(texts, r.record)
		}
	}
	return
}

// fetchRichRootUpgrade synthesizes a root text record for every
// revision in toFetch, for repositories upgrading from a non-rich-root
// source: the root file-id never changes content, but a rich-root
// format still needs a versioned-file record for it so that root
// entries have a committed text history like any other file.
//
// The synthesized parent set for a revision's root entry is the heads
// among its parent revisions' root-entry versions restricted to
// parents that used the *same* root file-id — ported from bzrlib's
// _parent_keys_for_root_version (original_source/bzrlib/fetch.py).
// rootIDCache is scoped to this single Fetch call (see DESIGN.md Open
// Question decision): it never outlives this function.
func (r *Repository) fetchRichRootUpgrade(toFetch []RevisionID, rootsByRevision map[RevisionID]FileID) error {
	rootIDCache := make(map[RevisionID]FileID, len(rootsByRevision))
	for id, rootID := range rootsByRevision {
		rootIDCache[id] = rootID
	}

	g := r.GetGraph()
	var records []store.StreamRecord

	for _, id := range toFetch {
		rootID, ok := rootIDCache[id]
		if !ok {
			inv, err := r.GetInventory(id)
			if err != nil {
				return err
			}
			rootID = inv.RootID
			rootIDCache[id] = rootID
		}

		rev, err := r.GetRevision(id)
		if err != nil {
			return err
		}

		sameRootParents, err := parentKeysForRootVersion(g, rev.ParentIDs, rootID, rootIDCache, r)
		if err != nil {
			return err
		}

		parentKeys := make([]store.Key, len(sameRootParents))
		for i, p := range sameRootParents {
			parentKeys[i] = textKey(rootID, p)
		}

		key := textKey(rootID, id)
		if _, err := r.Texts.GetFulltext(key); err == nil {
			continue // already synthesized (idempotent re-fetch)
		}
		records = append(records, store.StreamRecord{Key: key, Parents: parentKeys, Content: nil})
	}

	if len(records) == 0 {
		return nil
	}
	missing, err := insertWithRetry(r.Texts, records)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return unresolvedErr(missing)
	}
	return nil
}

// parentKeysForRootVersion returns the revision-ids among parentIDs
// whose root file-id matches rootID, reduced to heads via the graph
// engine — the set of root-text versions this revision's synthesized
// root entry should be recorded as a delta against.
func parentKeysForRootVersion(g *graph.Graph, parentIDs []RevisionID, rootID FileID, rootIDCache map[RevisionID]FileID, r *Repository) ([]RevisionID, error) {
	var sameRoot []RevisionID
	for _, pid := range parentIDs {
		pRoot, ok := rootIDCache[pid]
		if !ok {
			inv, err := r.RevisionTree(pid)
			if err != nil {
				return nil, err
			}
			pRoot = inv.RootID
			rootIDCache[pid] = pRoot
		}
		if pRoot == rootID {
			sameRoot = append(sameRoot, pid)
		}
	}
	if len(sameRoot) <= 1 {
		return sameRoot, nil
	}
	heads, err := g.Heads(sameRoot)
	if err != nil {
		return nil, err
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })
	return heads, nil
}
