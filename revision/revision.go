// Package revision models a single commit (Revision) and the file-id
// indexed tree snapshot (Inventory) it points to, plus the canonical
// textual digest (Testament) used as the payload for signatures. The
// on-disk serialization is a stable, canonical XML-like form grounded
// directly on bzrlib's own format: re-serializing a parsed Inventory
// must reproduce the identical byte sequence.
package revision

import "github.com/brennie/revctl"

// RevisionID and FileID alias the shared identifier types so callers
// of this package rarely need to import the root package directly.
type RevisionID = revctl.RevisionID
type FileID = revctl.FileID

// NullRevision is the distinguished root of all history.
const NullRevision = revctl.NullRevision

// RootFileID is the well-known file-id of the tree root in the
// canonical EmptyTree, matching bzrlib's TREE_ROOT.
const RootFileID FileID = "TREE_ROOT"

// Revision is one commit: its identity, its parents in the mainline
// and merge graph, and the metadata recorded by the committer.
type Revision struct {
	RevisionID    RevisionID
	ParentIDs     []RevisionID
	Committer     string
	Message       string
	Timestamp     float64 // seconds since epoch, fractional
	Timezone      int     // offset from UTC in seconds
	InventorySHA1 string  // sha1 of the canonical serialized inventory
	Properties    map[string]string
}

// Copy returns a deep copy of r, so callers may mutate the result
// without affecting a cached original.
func (r *Revision) Copy() *Revision {
	out := *r
	out.ParentIDs = append([]RevisionID(nil), r.ParentIDs...)
	out.Properties = make(map[string]string, len(r.Properties))
	for k, v := range r.Properties {
		out.Properties[k] = v
	}
	return &out
}
