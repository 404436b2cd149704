package historylog

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/brennie/revctl/branch"
	"github.com/brennie/revctl/repo"
	"github.com/brennie/revctl/revision"
)

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// commit records a revision whose tree is exactly files (path ->
// content), reusing each file's previous LastModifiedBy when its
// content hasn't changed since parentInv.
func commit(t *testing.T, r *repo.Repository, id repo.RevisionID, parents []repo.RevisionID, parentInv *revision.Inventory, files map[string]string) *revision.Inventory {
	t.Helper()

	inv := revision.NewInventory()
	inv.SetRoot(&revision.InventoryEntry{FileID: revision.RootFileID, Kind: revision.KindDirectory})
	inv.Revision = id

	for name, content := range files {
		fileID := revision.FileID(name)
		digest := sha1Hex(content)
		lastModBy := id
		if parentInv != nil {
			if pe, ok := parentInv.Get(fileID); ok && pe.TextSHA1 == digest {
				lastModBy = pe.LastModifiedBy
			}
		}
		if err := inv.Add(&revision.InventoryEntry{
			FileID: fileID, ParentID: revision.RootFileID, Name: name,
			Kind: revision.KindFile, TextSHA1: digest, TextSize: int64(len(content)),
			LastModifiedBy: lastModBy,
		}); err != nil {
			t.Fatalf("inv.Add(%s): %v", name, err)
		}
		if lastModBy == id {
			if err := r.AddText(fileID, id, nil, []byte(content)); err != nil {
				t.Fatalf("AddText(%s, %s): %v", name, id, err)
			}
		}
	}

	rev := &revision.Revision{
		RevisionID: id, ParentIDs: parents, Committer: "tester",
		Message: "commit " + string(id), Properties: map[string]string{},
	}
	if err := r.AddRevision(rev, inv); err != nil {
		t.Fatalf("AddRevision(%s): %v", id, err)
	}
	return inv
}

// linearBranch builds a three-revision mainline with no merges, a.txt
// changing each time, and returns the branch with its history already
// appended.
func linearBranch(t *testing.T) *branch.Branch {
	t.Helper()
	r := repo.NewRepository(false)
	i1 := commit(t, r, "rev1", nil, nil, map[string]string{"a.txt": "one"})
	i2 := commit(t, r, "rev2", []repo.RevisionID{"rev1"}, i1, map[string]string{"a.txt": "two"})
	commit(t, r, "rev3", []repo.RevisionID{"rev2"}, i2, map[string]string{"a.txt": "three", "b.txt": "new"})

	b := branch.New(r, branch.NewMemoryControlFiles())
	if err := b.AppendRevision("rev1", "rev2", "rev3"); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRunDefaultReturnsMainlineNewestFirst(t *testing.T) {
	b := linearBranch(t)
	entries, err := NewGenerator(b).Run(DefaultLogRequest())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"rev3", "rev2", "rev1"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, id := range want {
		if string(entries[i].RevisionID) != id {
			t.Fatalf("entries[%d].RevisionID = %q, want %q", i, entries[i].RevisionID, id)
		}
		if entries[i].Revno != want3[i] {
			t.Fatalf("entries[%d].Revno = %q, want %q", i, entries[i].Revno, want3[i])
		}
		if entries[i].MergeDepth != 0 {
			t.Fatalf("entries[%d].MergeDepth = %d, want 0", i, entries[i].MergeDepth)
		}
	}
}

var want3 = []string{"3", "2", "1"}

func TestRunForwardDirection(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.Direction = Forward
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"rev1", "rev2", "rev3"}
	for i, id := range want {
		if string(entries[i].RevisionID) != id {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].RevisionID, id)
		}
	}
}

func TestRunRevnoRangeIsInclusive(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.StartRevision = "rev2"
	req.EndRevision = "rev2"
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RevisionID != "rev2" {
		t.Fatalf("entries = %+v, want just rev2", entries)
	}
}

func TestRunLimitCapsEntries(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.Limit = 2
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RevisionID != "rev3" || entries[1].RevisionID != "rev2" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRunMessageSearchFiltersByRegex(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.MessageSearch = "REV2"
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RevisionID != "rev2" {
		t.Fatalf("entries = %+v, want just rev2 (case-insensitive match)", entries)
	}
}

func TestRunDeltaTypeFullAttachesDelta(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.DeltaType = "full"
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	// rev3 changed a.txt and added b.txt.
	rev3 := entries[0]
	if len(rev3.Delta) != 2 {
		t.Fatalf("rev3 delta = %+v, want 2 entries", rev3.Delta)
	}
}

func TestRunSpecificFileIDsFiltersRevisions(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.SpecificFileIDs = []FileID{"b.txt"}
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RevisionID != "rev3" {
		t.Fatalf("entries = %+v, want just rev3 (only one that touched b.txt)", entries)
	}
	// b.txt wasn't requested via DeltaType, so no delta should leak
	// into the result even though one was computed internally to
	// decide the filter.
	if entries[0].Delta != nil {
		t.Fatalf("entries[0].Delta = %+v, want nil (DeltaType not requested)", entries[0].Delta)
	}
}

func TestRunDiffTypeFullProducesUnifiedDiff(t *testing.T) {
	b := linearBranch(t)
	req := DefaultLogRequest()
	req.EndRevision = "rev2"
	req.StartRevision = "rev2"
	req.DiffType = "full"
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Diff, "-one") || !strings.Contains(entries[0].Diff, "+two") {
		t.Fatalf("diff = %q, want a unified diff from one to two", entries[0].Diff)
	}
}

func TestRunLevelsOneHidesMerges(t *testing.T) {
	r := repo.NewRepository(false)
	i1 := commit(t, r, "rev1", nil, nil, map[string]string{"a.txt": "one"})
	commit(t, r, "side1", []repo.RevisionID{"rev1"}, i1, map[string]string{"a.txt": "one-side"})
	i2 := commit(t, r, "rev2", []repo.RevisionID{"rev1", "side1"}, i1, map[string]string{"a.txt": "two"})
	_ = i2

	b := branch.New(r, branch.NewMemoryControlFiles())
	if err := b.AppendRevision("rev1", "rev2"); err != nil {
		t.Fatal(err)
	}

	req := DefaultLogRequest()
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.RevisionID == "side1" {
			t.Fatalf("side1 should not appear at Levels=1: %+v", entries)
		}
	}
}

func TestRunLevelsZeroShowsMergedRevisionNested(t *testing.T) {
	r := repo.NewRepository(false)
	i1 := commit(t, r, "rev1", nil, nil, map[string]string{"a.txt": "one"})
	commit(t, r, "side1", []repo.RevisionID{"rev1"}, i1, map[string]string{"a.txt": "one-side"})
	commit(t, r, "rev2", []repo.RevisionID{"rev1", "side1"}, i1, map[string]string{"a.txt": "two"})

	b := branch.New(r, branch.NewMemoryControlFiles())
	if err := b.AppendRevision("rev1", "rev2"); err != nil {
		t.Fatal(err)
	}

	req := DefaultLogRequest()
	req.Levels = 0
	entries, err := NewGenerator(b).Run(req)
	if err != nil {
		t.Fatal(err)
	}

	var side *LogEntry
	for i := range entries {
		if entries[i].RevisionID == "side1" {
			side = &entries[i]
		}
	}
	if side == nil {
		t.Fatalf("side1 missing from entries: %+v", entries)
	}
	if side.MergeDepth != 1 {
		t.Fatalf("side1 MergeDepth = %d, want 1", side.MergeDepth)
	}
	if side.Revno != "2.1.1" {
		t.Fatalf("side1 Revno = %q, want 2.1.1", side.Revno)
	}
}

func TestBatchesGrowUpToCap(t *testing.T) {
	b := batches(25)
	if len(b) == 0 {
		t.Fatal("expected at least one batch")
	}
	if b[0].start != 0 || b[0].end != 9 {
		t.Fatalf("first batch = %+v, want {0 9}", b[0])
	}
	total := 0
	for _, r := range b {
		total += r.end - r.start
	}
	if total != 25 {
		t.Fatalf("batches cover %d items, want 25", total)
	}
}
