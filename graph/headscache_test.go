package graph

import "testing"

func TestHeadsCacheMemoizes(t *testing.T) {
	g := scenarioCGraph()
	c := NewHeadsCache(g)

	got, err := c.Heads([]RevisionID{"B", "F"})
	if err != nil {
		t.Fatal(err)
	}
	if !equalRevSlices(got, []RevisionID{"F"}) {
		t.Fatalf("Heads([B,F]) = %v, want [F]", got)
	}

	if _, ok := c.cache[cacheKey([]RevisionID{"B", "F"})]; !ok {
		t.Fatal("expected the answer to be memoized under the sorted key")
	}

	c.Clear()
	if len(c.cache) != 0 {
		t.Fatal("expected Clear to empty the cache")
	}
}

func TestFrozenHeadsCacheSeeding(t *testing.T) {
	g := scenarioCGraph()
	c := NewFrozenHeadsCache(g)
	c.Cache([]RevisionID{"D", "E"}, []RevisionID{"D", "E"})

	got, err := c.Heads([]RevisionID{"D", "E"})
	if err != nil {
		t.Fatal(err)
	}
	if !equalRevSlices(got, []RevisionID{"D", "E"}) {
		t.Fatalf("Heads([D,E]) = %v, want the pre-seeded [D,E]", got)
	}

	got2, err := c.Heads([]RevisionID{"B", "C"})
	if err != nil {
		t.Fatal(err)
	}
	if !equalRevSlices(got2, []RevisionID{"B", "C"}) {
		t.Fatalf("Heads([B,C]) = %v, want [B,C]", got2)
	}
}

func TestCacheKeyOrderIndependent(t *testing.T) {
	a := cacheKey([]RevisionID{"B", "A"})
	b := cacheKey([]RevisionID{"A", "B"})
	if a != b {
		t.Fatalf("cacheKey order-dependent: %q vs %q", a, b)
	}
}
