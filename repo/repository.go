// Package repo implements the Repository: the owner of the three
// versioned-file stores (revisions, inventories, per-file texts) and
// the fetch protocol that replicates a computed revision set from one
// Repository to another as a stream.
//
// Grounded on bzrlib's Repository/RepoFetcher (original_source/bzrlib/fetch.py,
// repository.py) and spec.md §4.4, in the idiom of the graph, revision,
// and store packages this one composes.
package repo

import (
	"github.com/brennie/revctl"
	"github.com/brennie/revctl/graph"
	"github.com/brennie/revctl/internal/rlog"
	"github.com/brennie/revctl/revision"
	"github.com/brennie/revctl/store"
	"github.com/pkg/errors"
)

// RevisionID and FileID alias the shared identifier types.
type RevisionID = revctl.RevisionID
type FileID = revctl.FileID

// NullRevision is the distinguished root of all history.
const NullRevision = revctl.NullRevision

// Repository owns the three versioned-file stores that together record
// a project's full history: revisions, their inventories, and the
// per-file texts those inventories reference.
type Repository struct {
	// RichRoot marks a format that tracks a text record for the tree
	// root itself, not just ordinary files. Fetching into a rich-root
	// repository from a non-rich-root source requires synthesizing
	// those root text records (see fetchRichRootUpgrade).
	RichRoot bool

	Revisions   *store.VersionedFile
	Inventories *store.VersionedFile
	Texts       *store.VersionedFile

	// Logger receives fetch progress output. A nil Logger discards
	// everything.
	Logger *rlog.Logger
}

// NewRepository returns an empty repository of the given root-handling
// format.
func NewRepository(richRoot bool) *Repository {
	return &Repository{
		RichRoot:    richRoot,
		Revisions:   store.NewVersionedFile(),
		Inventories: store.NewVersionedFile(),
		Texts:       store.NewVersionedFile(),
	}
}

// OpenTextCache opens (creating if necessary) a persistent bolt-backed
// fulltext cache at path and attaches it to r.Texts, so reconstructing
// a file's content at some revision doesn't re-walk its delta chain on
// every call across the lifetime of a long-running process, or across
// process restarts against the same cache file.
func (r *Repository) OpenTextCache(path string) error {
	cache, err := store.OpenFulltextCache(path)
	if err != nil {
		return errors.Wrap(err, "repo: opening text cache")
	}
	r.Texts.Cache = cache
	return nil
}

// CloseTextCache releases the cache opened by OpenTextCache, if any.
func (r *Repository) CloseTextCache() error {
	if r.Texts.Cache == nil {
		return nil
	}
	err := r.Texts.Cache.Close()
	r.Texts.Cache = nil
	return err
}

func revisionKey(id RevisionID) store.Key { return store.Key{string(id)} }

func textKey(fileID FileID, introducedBy RevisionID) store.Key {
	return store.Key{string(fileID), string(introducedBy)}
}

// parentsProvider adapts a Repository's revision store to
// graph.ParentsProvider, so ancestry queries over a repository's
// history can reuse the general graph engine.
type parentsProvider struct {
	revisions *store.VersionedFile
}

func (p *parentsProvider) GetParentMap(keys []RevisionID) (map[RevisionID][]RevisionID, error) {
	storeKeys := make([]store.Key, len(keys))
	for i, k := range keys {
		storeKeys[i] = revisionKey(k)
	}
	raw, err := p.revisions.GetParentMap(storeKeys)
	if err != nil {
		return nil, err
	}
	out := make(map[RevisionID][]RevisionID, len(raw))
	for wire, parentKeys := range raw {
		rid := RevisionID(wire)
		parents := make([]RevisionID, 0, len(parentKeys))
		for _, pk := range parentKeys {
			if len(pk) > 0 {
				parents = append(parents, RevisionID(pk[0]))
			}
		}
		out[rid] = parents
	}
	return out, nil
}

// GetGraph returns a Graph engine answering ancestry queries over this
// repository's recorded revisions.
func (r *Repository) GetGraph() *graph.Graph {
	return graph.NewGraph(&parentsProvider{revisions: r.Revisions})
}

// GetRevision returns the recorded commit metadata for id.
func (r *Repository) GetRevision(id RevisionID) (*revision.Revision, error) {
	data, err := r.Revisions.GetFulltext(revisionKey(id))
	if err != nil {
		return nil, errors.Wrapf(err, "repo: fetching revision %q", id)
	}
	return revision.DeserializeRevision(data)
}

// GetInventory returns the tree snapshot recorded for id.
func (r *Repository) GetInventory(id RevisionID) (*revision.Inventory, error) {
	data, err := r.Inventories.GetFulltext(store.Key{string(id)})
	if err != nil {
		return nil, errors.Wrapf(err, "repo: fetching inventory %q", id)
	}
	return revision.Deserialize(data)
}

// RevisionTree returns the inventory for id, or the canonical
// EmptyTree for NullRevision.
func (r *Repository) RevisionTree(id RevisionID) (*revision.Inventory, error) {
	if id.IsNull() {
		return revision.EmptyTree(), nil
	}
	return r.GetInventory(id)
}

// Stats summarizes the size of a repository, as returned by GatherStats.
type Stats struct {
	Revisions int
}

// GatherStats returns simple size statistics about the repository's
// recorded history.
func (r *Repository) GatherStats() Stats {
	return Stats{Revisions: r.Revisions.Count()}
}

// AddRevision records rev and its inventory, deriving the revisions and
// inventories store keys from rev.RevisionID/rev.ParentIDs. The
// inventory's per-file text records introduced by this revision (those
// whose LastModifiedBy equals rev.RevisionID) must already be present
// in r.Texts; callers building history locally (as opposed to fetching
// it) are expected to call AddText first for any new file version.
func (r *Repository) AddRevision(rev *revision.Revision, inv *revision.Inventory) error {
	parentKeys := make([]store.Key, len(rev.ParentIDs))
	for i, p := range rev.ParentIDs {
		parentKeys[i] = revisionKey(p)
	}
	invParentKeys := append([]store.Key(nil), parentKeys...)
	if err := r.Inventories.Add(store.Key{string(rev.RevisionID)}, invParentKeys, revision.Serialize(inv)); err != nil {
		return errors.Wrap(err, "repo: adding inventory")
	}
	if err := r.Revisions.Add(revisionKey(rev.RevisionID), parentKeys, revision.SerializeRevision(rev)); err != nil {
		return errors.Wrap(err, "repo: adding revision")
	}
	return nil
}

// AddText records the fulltext for fileID as introduced by revision
// introducedBy, with the given parent text versions (the versions of
// the same file-id at each parent revision where it was last modified).
func (r *Repository) AddText(fileID FileID, introducedBy RevisionID, parents []RevisionID, content []byte) error {
	parentKeys := make([]store.Key, len(parents))
	for i, p := range parents {
		parentKeys[i] = textKey(fileID, p)
	}
	return r.Texts.Add(textKey(fileID, introducedBy), parentKeys, content)
}
