package revision

import "testing"

func buildSampleInventory(t *testing.T) *Inventory {
	t.Helper()
	inv := EmptyTree()
	inv.Revision = "rev1"
	if err := inv.Add(&InventoryEntry{
		FileID: "dir-1", ParentID: RootFileID, Name: "src", Kind: KindDirectory, LastModifiedBy: "rev1",
	}); err != nil {
		t.Fatal(err)
	}
	if err := inv.Add(&InventoryEntry{
		FileID: "file-1", ParentID: "dir-1", Name: "main.go", Kind: KindFile,
		TextSHA1: "abc123", TextSize: 42, LastModifiedBy: "rev1",
	}); err != nil {
		t.Fatal(err)
	}
	return inv
}

func TestInventoryByPath(t *testing.T) {
	inv := buildSampleInventory(t)
	e, ok := inv.ByPath("src/main.go")
	if !ok {
		t.Fatal("expected src/main.go to resolve")
	}
	if e.FileID != "file-1" {
		t.Fatalf("ByPath resolved to %q, want file-1", e.FileID)
	}
}

func TestInventoryPath(t *testing.T) {
	inv := buildSampleInventory(t)
	p, err := inv.Path("file-1")
	if err != nil {
		t.Fatal(err)
	}
	if p != "src/main.go" {
		t.Fatalf("Path(file-1) = %q, want src/main.go", p)
	}
}

func TestInventoryAddDuplicatePathFails(t *testing.T) {
	inv := buildSampleInventory(t)
	err := inv.Add(&InventoryEntry{FileID: "file-2", ParentID: "dir-1", Name: "main.go", Kind: KindFile})
	if err == nil {
		t.Fatal("expected an error inserting a duplicate path")
	}
}

func TestInventoryAddMissingParentFails(t *testing.T) {
	inv := EmptyTree()
	err := inv.Add(&InventoryEntry{FileID: "file-1", ParentID: "nonexistent", Name: "a.txt", Kind: KindFile})
	if err == nil {
		t.Fatal("expected an error for a missing parent directory")
	}
}

func TestInventoryRemoveNonEmptyDirFails(t *testing.T) {
	inv := buildSampleInventory(t)
	if err := inv.Remove("dir-1"); err == nil {
		t.Fatal("expected an error removing a non-empty directory")
	}
}

func TestInventoryRemoveLeaf(t *testing.T) {
	inv := buildSampleInventory(t)
	if err := inv.Remove("file-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := inv.Get("file-1"); ok {
		t.Fatal("expected file-1 to be gone")
	}
	if err := inv.Remove("dir-1"); err != nil {
		t.Fatalf("expected dir-1 now removable: %v", err)
	}
}

func TestInventoryDeltaAddRemoveModify(t *testing.T) {
	base := EmptyTree()
	base.Revision = "rev1"
	if err := base.Add(&InventoryEntry{FileID: "file-1", ParentID: RootFileID, Name: "a.txt", Kind: KindFile, TextSHA1: "aaa"}); err != nil {
		t.Fatal(err)
	}
	if err := base.Add(&InventoryEntry{FileID: "file-2", ParentID: RootFileID, Name: "b.txt", Kind: KindFile, TextSHA1: "bbb"}); err != nil {
		t.Fatal(err)
	}

	next := EmptyTree()
	next.Revision = "rev2"
	// file-1 modified, file-2 removed, file-3 added.
	if err := next.Add(&InventoryEntry{FileID: "file-1", ParentID: RootFileID, Name: "a.txt", Kind: KindFile, TextSHA1: "aaa2"}); err != nil {
		t.Fatal(err)
	}
	if err := next.Add(&InventoryEntry{FileID: "file-3", ParentID: RootFileID, Name: "c.txt", Kind: KindFile, TextSHA1: "ccc"}); err != nil {
		t.Fatal(err)
	}

	delta := next.Delta(base)
	byID := map[FileID]DeltaEntry{}
	for _, d := range delta {
		byID[d.FileID] = d
	}
	if _, ok := byID["file-2"]; !ok || !byID["file-2"].Removed {
		t.Fatalf("expected file-2 reported as removed, got %+v", byID)
	}
	if _, ok := byID["file-3"]; !ok || !byID["file-3"].Added {
		t.Fatalf("expected file-3 reported as added, got %+v", byID)
	}
	if d, ok := byID["file-1"]; !ok || d.Added || d.Removed {
		t.Fatalf("expected file-1 reported as modified, got %+v", byID)
	}
}

func TestEmptyTreeIsSingleEmptyRoot(t *testing.T) {
	inv := EmptyTree()
	if len(inv.Entries()) != 1 {
		t.Fatalf("expected EmptyTree to contain exactly the root, got %d entries", len(inv.Entries()))
	}
	root, ok := inv.Get(RootFileID)
	if !ok || root.Kind != KindDirectory {
		t.Fatal("expected the root entry to be a directory with RootFileID")
	}
}
