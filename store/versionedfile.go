package store

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// deltaFulltextThreshold bounds how deep a reconstruction chain is
// allowed to get before the next insertion is forced to be a fresh
// fulltext, matching the weave/knit design note that reconstruction
// must never require an unbounded number of deltas.
const deltaFulltextThreshold = 8

// a delta op mirrors one opcode from a line-level sequence match: it
// either copies a [start, end) run of lines from the base record, or
// inserts literal new lines.
type deltaOp struct {
	copy     bool
	start    int // base line range, if copy
	end      int
	inserted []string // literal lines, if !copy
}

type record struct {
	key      Key
	parents  []Key
	sha1     string
	fulltext []string // non-nil only for a fulltext record
	base     Key       // delta base, if fulltext == nil
	ops      []deltaOp // non-nil only for a delta record
	depth    int       // distance back to the nearest fulltext
}

// VersionedFile stores and reconstructs byte sequences addressed by
// key, using a weave/knit-style encoding: each record is a fulltext or
// a line-level delta against one ancestor record, so that the whole
// history of a file compresses to roughly the size of its edits
// rather than N full copies.
type VersionedFile struct {
	records map[string]*record

	// Cache, if set, is consulted before reconstructing a delta
	// record's fulltext and populated afterwards, so that a
	// long-lived process (or a later run entirely) doesn't repeatedly
	// re-apply the same chain of deltas. Nil by default.
	Cache *FulltextCache
}

// NewVersionedFile returns an empty store.
func NewVersionedFile() *VersionedFile {
	return &VersionedFile{records: map[string]*record{}}
}

// Add inserts key with the given parents and content. It is idempotent
// when key is already present with identical parents and content, and
// fails with RevisionAlreadyPresentError otherwise.
func (vf *VersionedFile) Add(key Key, parentKeys []Key, content []byte) error {
	wire := key.wire()
	lines := splitLines(string(content))
	digest := sha1Hex(content)

	if existing, ok := vf.records[wire]; ok {
		if existing.sha1 == digest && sameKeyList(existing.parents, parentKeys) {
			return nil
		}
		return &RevisionAlreadyPresentError{Key: key}
	}

	rec := &record{key: key, parents: append([]Key(nil), parentKeys...), sha1: digest}

	base := vf.chooseDeltaBase(parentKeys)
	if base == nil {
		rec.fulltext = lines
		rec.depth = 0
	} else {
		baseLines, err := vf.reconstructLines(base)
		if err != nil || base.depth+1 > deltaFulltextThreshold {
			rec.fulltext = lines
			rec.depth = 0
		} else {
			ops := computeDelta(baseLines, lines)
			if deltaCost(ops) > (2*len(lines))/3 {
				// Delta too close to fulltext size: storing it plainly
				// keeps reconstruction cheap, per the weave/knit bound.
				rec.fulltext = lines
				rec.depth = 0
			} else {
				rec.base = base.key
				rec.ops = ops
				rec.depth = base.depth + 1
			}
		}
	}

	vf.records[wire] = rec
	return nil
}

// chooseDeltaBase picks the first parent already present as the
// compression base, or nil if there is none (forcing a fulltext).
func (vf *VersionedFile) chooseDeltaBase(parentKeys []Key) *record {
	for _, p := range parentKeys {
		if r, ok := vf.records[p.wire()]; ok {
			return r
		}
	}
	return nil
}

// GetFulltext reconstructs key's content, verifying the stored SHA-1.
func (vf *VersionedFile) GetFulltext(key Key) ([]byte, error) {
	rec, ok := vf.records[key.wire()]
	if !ok {
		return nil, &RevisionNotPresentError{Key: key}
	}
	lines, err := vf.reconstructLines(rec)
	if err != nil {
		return nil, err
	}
	content := []byte(strings.Join(lines, ""))
	if got := sha1Hex(content); got != rec.sha1 {
		return nil, &InvalidChecksumError{Key: key, Expected: rec.sha1, Actual: got}
	}
	return content, nil
}

func (vf *VersionedFile) reconstructLines(rec *record) ([]string, error) {
	if rec.fulltext != nil {
		return rec.fulltext, nil
	}

	wireKey := rec.key.wire()
	if vf.Cache != nil {
		if cached, ok, err := vf.Cache.Get(wireKey); err != nil {
			return nil, err
		} else if ok {
			return splitLines(string(cached)), nil
		}
	}

	baseRec, ok := vf.records[rec.base.wire()]
	if !ok {
		return nil, &RevisionNotPresentError{Key: rec.base}
	}
	baseLines, err := vf.reconstructLines(baseRec)
	if err != nil {
		return nil, err
	}
	lines := applyDelta(baseLines, rec.ops)

	if vf.Cache != nil {
		if err := vf.Cache.Put(wireKey, []byte(strings.Join(lines, ""))); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// GetParentMap returns the parents of each present key in keys,
// without touching any record's content.
func (vf *VersionedFile) GetParentMap(keys []Key) (map[string][]Key, error) {
	out := make(map[string][]Key, len(keys))
	for _, k := range keys {
		if rec, ok := vf.records[k.wire()]; ok {
			out[k.wire()] = rec.parents
		}
	}
	return out, nil
}

// Count returns the number of records currently stored.
func (vf *VersionedFile) Count() int { return len(vf.records) }

// IterEntriesByFileID returns, in no particular order, every key whose
// first tuple component equals fileID.
func (vf *VersionedFile) IterEntriesByFileID(fileID string) []Key {
	var out []Key
	for _, rec := range vf.records {
		if len(rec.key) > 0 && rec.key[0] == fileID {
			out = append(out, rec.key)
		}
	}
	return out
}

// StreamRecord is one (key, parents, content) triple as carried over
// an insert_stream bulk-ingest call.
type StreamRecord struct {
	Key     Key
	Parents []Key
	Content []byte
}

// InsertStream bulk-inserts records, deferring any whose parents are
// not yet resolvable (present in this store or earlier in the same
// stream) to a later pass. It returns the keys that remain
// unresolved after every record that could make progress has been
// applied, mirroring the spec's "returns unsatisfied keys rather than
// failing" contract; a caller performing the described second pass
// should treat a non-empty result following that pass as fatal.
func (vf *VersionedFile) InsertStream(records []StreamRecord) (missingKeys []Key, err error) {
	pending := records
	for {
		var next []StreamRecord
		progressed := false
		for _, r := range pending {
			ready := true
			for _, p := range r.Parents {
				if p.wire() == "" {
					continue
				}
				if _, ok := vf.records[p.wire()]; !ok {
					ready = false
					break
				}
			}
			if !ready {
				next = append(next, r)
				continue
			}
			if err := vf.Add(r.Key, r.Parents, r.Content); err != nil {
				return nil, err
			}
			progressed = true
		}
		if !progressed || len(next) == 0 {
			pending = next
			break
		}
		pending = next
	}
	for _, r := range pending {
		missingKeys = append(missingKeys, r.Key)
	}
	return missingKeys, nil
}

func sameKeyList(a, b []Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].wire() != b[i].wire() {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// computeDelta diffs base against target at line granularity using a
// Ratcliff/Obershelp sequence match (the same algorithm family as
// Python's difflib, which bzrlib's weave format itself is built on),
// and records the result as a run of copy/insert ops.
func computeDelta(base, target []string) []deltaOp {
	matcher := difflib.NewMatcher(base, target)
	var ops []deltaOp
	for _, oc := range matcher.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			ops = append(ops, deltaOp{copy: true, start: oc.I1, end: oc.I2})
		case 'r', 'i':
			if oc.Tag == 'r' {
				// A replace still copies nothing from base; the new
				// lines are carried verbatim, same as an insert.
			}
			ops = append(ops, deltaOp{inserted: append([]string(nil), target[oc.J1:oc.J2]...)})
		case 'd':
			// Deleted lines from base contribute nothing to target.
		}
	}
	return ops
}

func applyDelta(base []string, ops []deltaOp) []string {
	var out []string
	for _, op := range ops {
		if op.copy {
			out = append(out, base[op.start:op.end]...)
		} else {
			out = append(out, op.inserted...)
		}
	}
	return out
}

// deltaCost is the number of lines a delta will need to store
// verbatim (insertions), used to decide whether a delta is still
// worth it relative to just storing a fresh fulltext.
func deltaCost(ops []deltaOp) int {
	n := 0
	for _, op := range ops {
		if !op.copy {
			n += len(op.inserted)
		}
	}
	return n
}
