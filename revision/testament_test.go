package revision

import "testing"

func TestTestamentZeroEntriesTextForm(t *testing.T) {
	rev := &Revision{
		RevisionID: "test@user-1",
		Committer:  "test@user",
		Timestamp:  1129025423,
		Timezone:   0,
		Message:    "initial null commit",
	}
	inv := EmptyTree()
	inv.Revision = rev.RevisionID

	tm := FromRevision(rev, inv)
	got := tm.ToTextForm1()
	want := "bazaar-ng testament version 1\n" +
		"revision-id: test@user-1\n" +
		"committer: test@user\n" +
		"timestamp: 1129025423.0\n" +
		"timezone: 0\n" +
		"entries: 0\n" +
		"message:\n" +
		"  initial null commit\n"
	if got != want {
		t.Fatalf("ToTextForm1() =\n%q\nwant\n%q", got, want)
	}
}

func TestTestamentSHA1Deterministic(t *testing.T) {
	rev := &Revision{RevisionID: "r1", Committer: "a@b", Timestamp: 1, Timezone: 0, Message: "m"}
	inv := EmptyTree()

	a := FromRevision(rev, inv).SHA1()
	b := FromRevision(rev, inv).SHA1()
	if a != b {
		t.Fatalf("testament SHA1 not deterministic: %s vs %s", a, b)
	}
}

func TestTestamentIncludesFileEntries(t *testing.T) {
	rev := &Revision{RevisionID: "r2", Committer: "a@b", Timestamp: 2, Timezone: 0, Message: "add file"}
	inv := EmptyTree()
	if err := inv.Add(&InventoryEntry{
		FileID: "file-1", ParentID: RootFileID, Name: "a.txt",
		Kind: KindFile, TextSHA1: "deadbeef", TextSize: 4,
	}); err != nil {
		t.Fatal(err)
	}

	tm := FromRevision(rev, inv)
	text := tm.ToTextForm1()
	if !containsLine(text, "entries: 1") {
		t.Fatalf("expected entries: 1, got:\n%s", text)
	}
	if !containsSubstring(text, "file-1 a.txt deadbeef") {
		t.Fatalf("expected a file entry line, got:\n%s", text)
	}
}

func containsLine(s, line string) bool {
	return containsSubstring(s, line)
}

func containsSubstring(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
