package branch

import (
	"testing"

	"github.com/brennie/revctl/repo"
	"github.com/brennie/revctl/revision"
)

func commit(t *testing.T, r *repo.Repository, id, parent repo.RevisionID) {
	t.Helper()
	var parents []repo.RevisionID
	if parent != "" {
		parents = []repo.RevisionID{parent}
	}
	inv := revision.NewInventory()
	inv.SetRoot(&revision.InventoryEntry{FileID: revision.RootFileID, Kind: revision.KindDirectory})
	inv.Revision = id
	rev := &revision.Revision{
		RevisionID: id, ParentIDs: parents, Committer: "tester",
		Message: "commit " + string(id), Properties: map[string]string{},
	}
	if err := r.AddRevision(rev, inv); err != nil {
		t.Fatalf("AddRevision(%s): %v", id, err)
	}
}

func newBranch() *Branch {
	return New(repo.NewRepository(false), NewMemoryControlFiles())
}

func TestEmptyBranchHasNoHistory(t *testing.T) {
	b := newBranch()
	history, err := b.RevisionHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no history, got %v", history)
	}
	revno, rev, err := b.LastRevisionInfo()
	if err != nil {
		t.Fatal(err)
	}
	if revno != 0 || rev != NullRevision {
		t.Fatalf("LastRevisionInfo() = (%d, %q), want (0, %q)", revno, rev, NullRevision)
	}
}

func TestAppendRevisionAndRevno(t *testing.T) {
	b := newBranch()
	commit(t, b.Storage, "rev1", "")
	commit(t, b.Storage, "rev2", "rev1")
	if err := b.AppendRevision("rev1", "rev2"); err != nil {
		t.Fatal(err)
	}
	revno, rev, err := b.LastRevisionInfo()
	if err != nil {
		t.Fatal(err)
	}
	if revno != 2 || rev != "rev2" {
		t.Fatalf("LastRevisionInfo() = (%d, %q), want (2, rev2)", revno, rev)
	}
	if got, err := b.RevisionIDToRevno("rev1"); err != nil || got != 1 {
		t.Fatalf("RevisionIDToRevno(rev1) = (%d, %v), want (1, nil)", got, err)
	}
	if got, err := b.GetRevID(2); err != nil || got != "rev2" {
		t.Fatalf("GetRevID(2) = (%q, %v), want (rev2, nil)", got, err)
	}
	if got, err := b.GetRevID(0); err != nil || got != NullRevision {
		t.Fatalf("GetRevID(0) = (%q, %v), want (%q, nil)", got, err, NullRevision)
	}
	if _, err := b.GetRevID(3); err == nil {
		t.Fatal("expected InvalidRevisionNumberError for revno 3")
	}
}

func TestPushLocationFallbackChain(t *testing.T) {
	b := newBranch()
	if loc, err := b.PushLocation(); err != nil || loc != "" {
		t.Fatalf("PushLocation() on empty branch = (%q, %v), want (\"\", nil)", loc, err)
	}

	if err := b.files.WriteFile(legacyXPullFile, []byte("legacy://x\n")); err != nil {
		t.Fatal(err)
	}
	if loc, err := b.PushLocation(); err != nil || loc != "legacy://x" {
		t.Fatalf("PushLocation() = (%q, %v), want legacy://x", loc, err)
	}

	if err := b.SetParent("parent://y"); err != nil {
		t.Fatal(err)
	}
	if loc, err := b.PushLocation(); err != nil || loc != "parent://y" {
		t.Fatalf("PushLocation() should prefer parent over x-pull, got %q", loc)
	}

	if err := b.SetPushLocation("push://z"); err != nil {
		t.Fatal(err)
	}
	if loc, err := b.PushLocation(); err != nil || loc != "push://z" {
		t.Fatalf("PushLocation() should prefer push-location, got %q", loc)
	}

	// SetPushLocation never touches the parent control file.
	if p, err := b.GetParent(); err != nil || p != "parent://y" {
		t.Fatalf("GetParent() = (%q, %v), want parent://y unchanged", p, err)
	}
}

func buildSourceBranch(t *testing.T) *Branch {
	t.Helper()
	src := newBranch()
	commit(t, src.Storage, "rev1", "")
	commit(t, src.Storage, "rev2", "rev1")
	if err := src.AppendRevision("rev1", "rev2"); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestPullFastForward(t *testing.T) {
	src := buildSourceBranch(t)
	dst := newBranch()

	if err := dst.Pull(src, false); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	history, err := dst.RevisionHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0] != "rev1" || history[1] != "rev2" {
		t.Fatalf("dst history = %v, want [rev1 rev2]", history)
	}
	if _, err := dst.Storage.GetRevision("rev2"); err != nil {
		t.Fatalf("expected rev2 to be fetched: %v", err)
	}
}

func TestPullIncremental(t *testing.T) {
	src := buildSourceBranch(t)
	dst := newBranch()
	commit(t, dst.Storage, "rev1", "")
	if err := dst.AppendRevision("rev1"); err != nil {
		t.Fatal(err)
	}

	// dst already shares rev1 with src; pulling should fetch rev2 and
	// extend the mainline with exactly the one new revision.
	if err := dst.Pull(src, false); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	history, err := dst.RevisionHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0] != "rev1" || history[1] != "rev2" {
		t.Fatalf("dst history = %v, want [rev1 rev2]", history)
	}
}

func TestMissingRevisionsDivergedWithoutOverwrite(t *testing.T) {
	src := newBranch()
	commit(t, src.Storage, "rev1", "")
	commit(t, src.Storage, "rev2a", "rev1")
	if err := src.AppendRevision("rev1", "rev2a"); err != nil {
		t.Fatal(err)
	}

	dst := newBranch()
	commit(t, dst.Storage, "rev1", "")
	commit(t, dst.Storage, "rev2b", "rev1")
	if err := dst.AppendRevision("rev1", "rev2b"); err != nil {
		t.Fatal(err)
	}

	err := dst.Pull(src, false)
	if err == nil {
		t.Fatal("expected DivergedBranchesError")
	}
	if _, ok := err.(*DivergedBranchesError); !ok {
		t.Fatalf("expected *DivergedBranchesError, got %T: %v", err, err)
	}
}

func TestPullOverwriteReplacesHistory(t *testing.T) {
	src := newBranch()
	commit(t, src.Storage, "rev1", "")
	commit(t, src.Storage, "rev2a", "rev1")
	if err := src.AppendRevision("rev1", "rev2a"); err != nil {
		t.Fatal(err)
	}

	dst := newBranch()
	commit(t, dst.Storage, "rev1", "")
	commit(t, dst.Storage, "rev2b", "rev1")
	if err := dst.AppendRevision("rev1", "rev2b"); err != nil {
		t.Fatal(err)
	}

	if err := dst.Pull(src, true); err != nil {
		t.Fatalf("Pull with overwrite: %v", err)
	}
	history, err := dst.RevisionHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1] != "rev2a" {
		t.Fatalf("dst history = %v, want [rev1 rev2a]", history)
	}
}

func TestMissingRevisionsWithStop(t *testing.T) {
	src := buildSourceBranch(t)
	dst := newBranch()
	commit(t, dst.Storage, "rev1", "")
	if err := dst.AppendRevision("rev1"); err != nil {
		t.Fatal(err)
	}

	missing, err := dst.MissingRevisions(src, "rev2")
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0] != "rev2" {
		t.Fatalf("MissingRevisions() = %v, want [rev2]", missing)
	}
}

func TestIterMergeSortedRevisionsLinear(t *testing.T) {
	b := newBranch()
	commit(t, b.Storage, "rev1", "")
	commit(t, b.Storage, "rev2", "rev1")
	commit(t, b.Storage, "rev3", "rev2")
	if err := b.AppendRevision("rev1", "rev2", "rev3"); err != nil {
		t.Fatal(err)
	}

	order, err := b.IterMergeSortedRevisions("", "", "exclude")
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "rev3" {
		t.Fatalf("IterMergeSortedRevisions() = %v, want tip-first starting with rev3", order)
	}
}
