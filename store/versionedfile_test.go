package store

import (
	"bytes"
	"fmt"
	"testing"
)

func k(fileID, rev string) Key { return Key{fileID, rev} }

func TestVersionedFileAddAndGetFulltext(t *testing.T) {
	vf := NewVersionedFile()
	if err := vf.Add(k("f1", "r1"), nil, []byte("hello\nworld\n")); err != nil {
		t.Fatal(err)
	}
	got, err := vf.GetFulltext(k("f1", "r1"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello\nworld\n")) {
		t.Fatalf("GetFulltext = %q, want %q", got, "hello\nworld\n")
	}
}

func TestVersionedFileAddIdempotent(t *testing.T) {
	vf := NewVersionedFile()
	content := []byte("same content\n")
	if err := vf.Add(k("f1", "r1"), nil, content); err != nil {
		t.Fatal(err)
	}
	if err := vf.Add(k("f1", "r1"), nil, content); err != nil {
		t.Fatalf("expected idempotent re-add to succeed, got %v", err)
	}
}

func TestVersionedFileAddConflictRejected(t *testing.T) {
	vf := NewVersionedFile()
	if err := vf.Add(k("f1", "r1"), nil, []byte("a\n")); err != nil {
		t.Fatal(err)
	}
	err := vf.Add(k("f1", "r1"), nil, []byte("b\n"))
	if err == nil {
		t.Fatal("expected an error re-adding the same key with different content")
	}
	if _, ok := err.(*RevisionAlreadyPresentError); !ok {
		t.Fatalf("expected *RevisionAlreadyPresentError, got %T", err)
	}
}

func TestVersionedFileGetFulltextMissing(t *testing.T) {
	vf := NewVersionedFile()
	_, err := vf.GetFulltext(k("f1", "nope"))
	if _, ok := err.(*RevisionNotPresentError); !ok {
		t.Fatalf("expected *RevisionNotPresentError, got %v", err)
	}
}

func TestVersionedFileDeltaChainReconstructs(t *testing.T) {
	vf := NewVersionedFile()
	base := "line one\nline two\nline three\nline four\n"
	if err := vf.Add(k("f1", "r1"), nil, []byte(base)); err != nil {
		t.Fatal(err)
	}

	prev := RevisionLike("r1")
	content := base
	for i := 2; i <= 6; i++ {
		content = content + fmt.Sprintf("line %d\n", i+10)
		cur := RevisionLike(fmt.Sprintf("r%d", i))
		if err := vf.Add(k("f1", string(cur)), []Key{k("f1", string(prev))}, []byte(content)); err != nil {
			t.Fatal(err)
		}
		prev = cur
	}

	got, err := vf.GetFulltext(k("f1", string(prev)))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Fatalf("reconstructed content mismatch:\ngot:  %q\nwant: %q", got, content)
	}
}

type RevisionLike = string

func TestVersionedFileGetParentMap(t *testing.T) {
	vf := NewVersionedFile()
	if err := vf.Add(k("f1", "r1"), nil, []byte("a\n")); err != nil {
		t.Fatal(err)
	}
	if err := vf.Add(k("f1", "r2"), []Key{k("f1", "r1")}, []byte("a\nb\n")); err != nil {
		t.Fatal(err)
	}
	pm, err := vf.GetParentMap([]Key{k("f1", "r2"), k("f1", "missing")})
	if err != nil {
		t.Fatal(err)
	}
	if len(pm) != 1 {
		t.Fatalf("expected only r2 to resolve, got %v", pm)
	}
	parents := pm[k("f1", "r2").wire()]
	if len(parents) != 1 || parents[0].wire() != k("f1", "r1").wire() {
		t.Fatalf("parents = %v, want [f1:r1]", parents)
	}
}

func TestVersionedFileInsertStreamDefersOnMissingParent(t *testing.T) {
	vf := NewVersionedFile()
	records := []StreamRecord{
		{Key: k("f1", "r2"), Parents: []Key{k("f1", "r1")}, Content: []byte("a\nb\n")},
		{Key: k("f1", "r1"), Parents: nil, Content: []byte("a\n")},
	}
	missing, err := vf.InsertStream(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected both records to resolve once r1 lands, got missing=%v", missing)
	}
	if _, err := vf.GetFulltext(k("f1", "r2")); err != nil {
		t.Fatalf("expected r2 to be reconstructable: %v", err)
	}
}

func TestVersionedFileInsertStreamReportsUnresolvable(t *testing.T) {
	vf := NewVersionedFile()
	records := []StreamRecord{
		{Key: k("f1", "r2"), Parents: []Key{k("f1", "ghost")}, Content: []byte("a\nb\n")},
	}
	missing, err := vf.InsertStream(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0].wire() != k("f1", "r2").wire() {
		t.Fatalf("expected r2 to be reported missing, got %v", missing)
	}
}

func TestVersionedFileChecksumVerifiedOnReconstruction(t *testing.T) {
	vf := NewVersionedFile()
	if err := vf.Add(k("f1", "r1"), nil, []byte("a\nb\nc\n")); err != nil {
		t.Fatal(err)
	}
	rec := vf.records[k("f1", "r1").wire()]
	rec.sha1 = "0000000000000000000000000000000000000000"
	_, err := vf.GetFulltext(k("f1", "r1"))
	if _, ok := err.(*InvalidChecksumError); !ok {
		t.Fatalf("expected *InvalidChecksumError, got %v", err)
	}
}
