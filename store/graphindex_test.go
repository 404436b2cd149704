package store

import (
	"reflect"
	"testing"
)

func TestGraphIndexRoundTrip(t *testing.T) {
	b := NewGraphIndexBuilder(1)
	if err := b.AddNode(Key{"file-1", "rev-1"}, [][]Key{{}}, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.AddNode(Key{"file-1", "rev-2"}, [][]Key{{{"file-1", "rev-1"}}}, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.AddNode(Key{"file-1", "rev-3"}, [][]Key{{{"file-1", "rev-1"}, {"file-1", "rev-2"}}}, ""); err != nil {
		t.Fatal(err)
	}

	data := b.Finish()

	idx, err := ParseGraphIndex(data)
	if err != nil {
		t.Fatalf("ParseGraphIndex: %v", err)
	}

	entries, err := idx.IterEntries([]Key{{"file-1", "rev-3"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0].References[0]
	want := []Key{{"file-1", "rev-1"}, {"file-1", "rev-2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("references = %v, want %v", got, want)
	}
}

func TestGraphIndexSignatureAndOptionsLines(t *testing.T) {
	b := NewGraphIndexBuilder(2)
	data := b.Finish()
	if string(data[:len(graphIndexSignature)]) != graphIndexSignature {
		t.Fatalf("expected exact signature %q, got %q", graphIndexSignature, data[:len(graphIndexSignature)])
	}
	rest := string(data[len(graphIndexSignature):])
	wantOptions := "node_ref_lists=2\n"
	if rest[:len(wantOptions)] != wantOptions {
		t.Fatalf("expected options line %q, got %q", wantOptions, rest[:len(wantOptions)])
	}
}

func TestGraphIndexEmptyHasTrailerLine(t *testing.T) {
	b := NewGraphIndexBuilder(0)
	data := b.Finish()
	if data[len(data)-1] != '\n' {
		t.Fatal("expected the serialized index to end with the trailer newline")
	}
	if _, err := ParseGraphIndex(data); err != nil {
		t.Fatalf("ParseGraphIndex on an empty index: %v", err)
	}
}

func TestGraphIndexDuplicateKeyRejected(t *testing.T) {
	b := NewGraphIndexBuilder(1)
	if err := b.AddNode(Key{"a"}, [][]Key{{}}, ""); err != nil {
		t.Fatal(err)
	}
	err := b.AddNode(Key{"a"}, [][]Key{{}}, "")
	if err == nil {
		t.Fatal("expected an error adding a duplicate key")
	}
	if _, ok := err.(*BadIndexDuplicateKeyError); !ok {
		t.Fatalf("expected *BadIndexDuplicateKeyError, got %T", err)
	}
}

func TestGraphIndexWhitespaceKeyRejected(t *testing.T) {
	b := NewGraphIndexBuilder(0)
	err := b.AddNode(Key{"has space"}, [][]Key{}, "")
	if err == nil {
		t.Fatal("expected an error for a whitespace-containing key")
	}
}

func TestGraphIndexWideOffsetsForManyNodes(t *testing.T) {
	b := NewGraphIndexBuilder(1)
	var prev Key
	for i := 0; i < 50; i++ {
		k := Key{"file", string(rune('A' + i))}
		var refs [][]Key
		if prev == nil {
			refs = [][]Key{{}}
		} else {
			refs = [][]Key{{prev}}
		}
		if err := b.AddNode(k, refs, ""); err != nil {
			t.Fatalf("AddNode %v: %v", k, err)
		}
		prev = k
	}
	data := b.Finish()
	idx, err := ParseGraphIndex(data)
	if err != nil {
		t.Fatalf("ParseGraphIndex: %v", err)
	}
	all, err := idx.IterAllEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(all))
	}
}

func TestGraphIndexIterAllEntriesDescendingKeyOrder(t *testing.T) {
	b := NewGraphIndexBuilder(0)
	for _, k := range []string{"alpha", "beta", "gamma"} {
		if err := b.AddNode(Key{k}, [][]Key{}, ""); err != nil {
			t.Fatal(err)
		}
	}
	data := b.Finish()
	idx, err := ParseGraphIndex(data)
	if err != nil {
		t.Fatal(err)
	}
	all, err := idx.IterAllEntries()
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(all))
	for i, e := range all {
		got[i] = e.Key[0]
	}
	want := []string{"gamma", "beta", "alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("on-disk order = %v, want descending %v", got, want)
	}
}
