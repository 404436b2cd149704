package graph

import "sort"

func cacheKey(keys []RevisionID) string {
	sorted := append([]RevisionID(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := ""
	for i, k := range sorted {
		if i > 0 {
			out += "\x00"
		}
		out += string(k)
	}
	return out
}

// HeadsCache memoizes Graph.Heads results for repeated queries against
// the same key set, invalidated whenever the underlying graph may have
// gained new revisions (call Clear after such a change).
type HeadsCache struct {
	g     *Graph
	cache map[string][]RevisionID
}

// NewHeadsCache returns a cache wrapping g.
func NewHeadsCache(g *Graph) *HeadsCache {
	return &HeadsCache{g: g, cache: make(map[string][]RevisionID)}
}

// Heads returns g.Heads(keys), memoized.
func (c *HeadsCache) Heads(keys []RevisionID) ([]RevisionID, error) {
	ck := cacheKey(keys)
	if v, ok := c.cache[ck]; ok {
		return v, nil
	}
	v, err := c.g.Heads(keys)
	if err != nil {
		return nil, err
	}
	c.cache[ck] = v
	return v, nil
}

// Clear drops all memoized answers, e.g. after the underlying graph
// has gained new revisions.
func (c *HeadsCache) Clear() { c.cache = make(map[string][]RevisionID) }

// FrozenHeadsCache is a heads cache over a graph that will not change
// again, so it has no Clear. Cache pre-seeds an answer; Heads returns a
// cached answer when there is one and otherwise computes and stores it.
// The map is not guarded, so it is not safe for concurrent use.
type FrozenHeadsCache struct {
	g     *Graph
	cache map[string][]RevisionID
}

// NewFrozenHeadsCache returns a frozen cache wrapping g.
func NewFrozenHeadsCache(g *Graph) *FrozenHeadsCache {
	return &FrozenHeadsCache{g: g, cache: make(map[string][]RevisionID)}
}

// Heads returns a cached answer if present, else computes and caches it.
func (c *FrozenHeadsCache) Heads(keys []RevisionID) ([]RevisionID, error) {
	ck := cacheKey(keys)
	if v, ok := c.cache[ck]; ok {
		return v, nil
	}
	v, err := c.g.Heads(keys)
	if err != nil {
		return nil, err
	}
	c.cache[ck] = v
	return v, nil
}

// Cache records a known heads(keys) == heads answer without recomputing it.
func (c *FrozenHeadsCache) Cache(keys, heads []RevisionID) {
	c.cache[cacheKey(keys)] = heads
}
