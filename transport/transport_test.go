package transport

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func newTestTransport(t *testing.T) *LocalTransport {
	t.Helper()
	dir, err := ioutil.TempDir("", "transport-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return New(dir)
}

func TestNewStripsFileScheme(t *testing.T) {
	tr := New("file:///tmp/somewhere")
	if tr.Base != "/tmp/somewhere" {
		t.Fatalf("Base = %q, want /tmp/somewhere", tr.Base)
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("a.txt", strings.NewReader("hello")); err != nil {
		t.Fatal(err)
	}
	r, err := tr.Get("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want hello", data)
	}
}

func TestGetMissingFileIsNoSuchFileError(t *testing.T) {
	tr := newTestTransport(t)
	if _, err := tr.Get("missing.txt"); err == nil {
		t.Fatal("expected error")
	} else if _, ok := err.(*NoSuchFileError); !ok {
		t.Fatalf("got %T, want *NoSuchFileError", err)
	}
}

func TestMkdirTwiceIsFileExistsError(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Mkdir("d"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Mkdir("d"); err == nil {
		t.Fatal("expected error")
	} else if _, ok := err.(*FileExistsError); !ok {
		t.Fatalf("got %T, want *FileExistsError", err)
	}
}

func TestAppendExtendsExistingFile(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("log.txt", strings.NewReader("one\n")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Append("log.txt", strings.NewReader("two\n")); err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadFile(tr.Abspath("log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("got %q", data)
	}
}

func TestGetRangeReadsOnlyRequestedWindow(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("a.txt", strings.NewReader("0123456789")); err != nil {
		t.Fatal(err)
	}
	r, err := tr.GetRange("a.txt", 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "3456" {
		t.Fatalf("got %q, want 3456", data)
	}
}

func TestRenameMovesFile(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("old.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Rename("old.txt", "new.txt"); err != nil {
		t.Fatal(err)
	}
	if tr.Has("old.txt") {
		t.Fatal("old.txt should no longer exist")
	}
	if !tr.Has("new.txt") {
		t.Fatal("new.txt should exist")
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("a.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Delete("a.txt"); err != nil {
		t.Fatal(err)
	}
	if tr.Has("a.txt") {
		t.Fatal("a.txt should be gone")
	}
}

func TestListDirListsImmediateChildrenOnly(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Mkdir("sub"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Put("a.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Put(filepath.Join("sub", "b.txt"), strings.NewReader("y")); err != nil {
		t.Fatal(err)
	}
	names, err := tr.ListDir("")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "sub" {
		t.Fatalf("ListDir = %v, want [a.txt sub]", names)
	}
}

func TestCloneWithOffsetRootsNewTransport(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Mkdir("sub"); err != nil {
		t.Fatal(err)
	}
	child := tr.Clone("sub")
	if err := child.Put("c.txt", strings.NewReader("z")); err != nil {
		t.Fatal(err)
	}
	if !tr.Has(filepath.Join("sub", "c.txt")) {
		t.Fatal("expected c.txt to land under the parent's sub directory")
	}
}

func TestLockWriteExcludesLockRead(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("locked", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	w, err := tr.LockWrite("locked")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Unlock()

	if _, err := tr.LockRead("locked"); err == nil {
		t.Fatal("expected read lock to be excluded by the held write lock")
	}
}

func TestLockScopeCancelsOnExplicitRelease(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.Put("locked", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	w, err := tr.LockWrite("locked")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Unlock()

	ctx, cancel := LockScope(context.Background(), w)
	select {
	case <-ctx.Done():
		t.Fatal("context should not be done before cancel is called")
	default:
	}
	cancel()
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context should be done after cancel is called")
	}
}
