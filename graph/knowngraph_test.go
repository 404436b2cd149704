package graph

import "testing"

func TestKnownGraphGDFO(t *testing.T) {
	parentMap := map[RevisionID][]RevisionID{
		"A": {},
		"B": {"A"},
		"C": {"A"},
		"D": {"B"},
		"E": {"C"},
		"F": {"D", "E"},
	}
	kg := NewKnownGraph(parentMap)

	cases := []struct {
		key  RevisionID
		want int
	}{
		{"A", 1},
		{"B", 2},
		{"C", 2},
		{"D", 3},
		{"E", 3},
		{"F", 4},
	}
	for _, c := range cases {
		got, ok := kg.GDFO(c.key)
		if !ok {
			t.Fatalf("GDFO(%s): not found", c.key)
		}
		if got != c.want {
			t.Errorf("GDFO(%s) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestKnownGraphGDFOUnknownKey(t *testing.T) {
	kg := NewKnownGraph(map[RevisionID][]RevisionID{"A": {}})
	if _, ok := kg.GDFO("nope"); ok {
		t.Fatal("expected ok=false for an unknown key")
	}
}

func TestKnownGraphHeadsSingletonAndNull(t *testing.T) {
	kg := NewKnownGraph(map[RevisionID][]RevisionID{
		"A": {},
		"B": {"A"},
	})
	if got := kg.Heads([]RevisionID{"B"}); !equalRevSlices(got, []RevisionID{"B"}) {
		t.Errorf("Heads([B]) = %v, want [B]", got)
	}
	if got := kg.Heads([]RevisionID{NullRevision, "A"}); !equalRevSlices(got, []RevisionID{"A"}) {
		t.Errorf("Heads([NULL,A]) = %v, want [A]", got)
	}
	if got := kg.Heads([]RevisionID{NullRevision}); !equalRevSlices(got, []RevisionID{NullRevision}) {
		t.Errorf("Heads([NULL]) = %v, want [NULL]", got)
	}
}

func TestKnownGraphHeadsCrissCross(t *testing.T) {
	// A -> D, F; D,F -> B, C (criss-cross merge, no unique LCA)
	kg := NewKnownGraph(map[RevisionID][]RevisionID{
		"A": {},
		"D": {"A"},
		"F": {"A"},
		"B": {"D", "F"},
		"C": {"D", "F"},
	})
	got := kg.Heads([]RevisionID{"B", "C"})
	if !equalRevSlices(sortStable(got), sortStable([]RevisionID{"B", "C"})) {
		t.Errorf("Heads([B,C]) = %v, want [B,C]", got)
	}
}

func TestKnownGraphLinearChainSkipsWithDominator(t *testing.T) {
	// A long single-parent chain should all collapse to one linear
	// dominator run; heads of the tip and any strict ancestor should
	// pick the tip.
	parentMap := map[RevisionID][]RevisionID{"A": {}}
	prev := RevisionID("A")
	for i := 0; i < 20; i++ {
		next := RevisionID(rune('a' + i))
		parentMap[next] = []RevisionID{prev}
		prev = next
	}
	kg := NewKnownGraph(parentMap)
	tip := prev
	got := kg.Heads([]RevisionID{"A", tip})
	if !equalRevSlices(got, []RevisionID{tip}) {
		t.Errorf("Heads([A, tip]) = %v, want [%s]", got, tip)
	}
}

func TestKnownGraphGetParentMapOmitsGhosts(t *testing.T) {
	kg := NewKnownGraph(map[RevisionID][]RevisionID{
		"A": {"ghost"},
	})
	got, err := kg.GetParentMap([]RevisionID{"A", "ghost", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["A"]; !ok {
		t.Fatal("expected A to be present")
	}
	if _, ok := got["ghost"]; ok {
		t.Fatal("expected ghost to be absent (it has no known parents)")
	}
	if _, ok := got["missing"]; ok {
		t.Fatal("expected missing to be absent")
	}
}

func equalRevSlices(a, b []RevisionID) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := newRevSet(a...), newRevSet(b...)
	for k := range as {
		if !bs.has(k) {
			return false
		}
	}
	return true
}
