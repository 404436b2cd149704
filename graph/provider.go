// Package graph implements ancestry queries over a revision parent map:
// breadth-first search, lowest common ancestors, head-set reduction,
// topological ordering, and a precomputed KnownGraph acceleration
// structure. It is a from-scratch Go port of the algorithms in bzrlib's
// graph.py, written in the idiom of this module's teacher (golang/dep).
package graph

import "github.com/brennie/revctl"

// RevisionID aliases the shared identifier type so callers of this
// package don't need to import the root package for the common case.
type RevisionID = revctl.RevisionID

// NullRevision is the distinguished root of all history.
const NullRevision = revctl.NullRevision

// ParentsProvider answers parents_of queries for a set of keys. Keys
// absent from the result are ghosts: referenced as a parent somewhere,
// but not present in the underlying store. A present key with an empty
// parent list has no parents other than NullRevision.
type ParentsProvider interface {
	GetParentMap(keys []RevisionID) (map[RevisionID][]RevisionID, error)
}

// DictParentsProvider serves a parent map held entirely in memory; it is
// the common provider for tests and for KnownGraph's precomputation.
type DictParentsProvider struct {
	Ancestry map[RevisionID][]RevisionID
}

// NewDictParentsProvider returns a provider backed by ancestry.
func NewDictParentsProvider(ancestry map[RevisionID][]RevisionID) *DictParentsProvider {
	return &DictParentsProvider{Ancestry: ancestry}
}

// GetParentMap implements ParentsProvider.
func (p *DictParentsProvider) GetParentMap(keys []RevisionID) (map[RevisionID][]RevisionID, error) {
	out := make(map[RevisionID][]RevisionID, len(keys))
	for _, k := range keys {
		if parents, ok := p.Ancestry[k]; ok {
			out[k] = parents
		}
	}
	return out, nil
}

// StackedParentsProvider queries a sequence of providers in order,
// stopping once every requested key has been resolved. It is used when
// a branch's repository is stacked on a fallback repository.
type StackedParentsProvider struct {
	Providers []ParentsProvider
}

// NewStackedParentsProvider returns a provider that tries providers in
// order until all keys are resolved.
func NewStackedParentsProvider(providers ...ParentsProvider) *StackedParentsProvider {
	return &StackedParentsProvider{Providers: providers}
}

// GetParentMap implements ParentsProvider.
func (p *StackedParentsProvider) GetParentMap(keys []RevisionID) (map[RevisionID][]RevisionID, error) {
	remaining := make([]RevisionID, len(keys))
	copy(remaining, keys)
	out := make(map[RevisionID][]RevisionID, len(keys))

	for _, provider := range p.Providers {
		if len(remaining) == 0 {
			break
		}
		found, err := provider.GetParentMap(remaining)
		if err != nil {
			return nil, err
		}
		next := remaining[:0]
		for _, k := range remaining {
			if parents, ok := found[k]; ok {
				out[k] = parents
			} else {
				next = append(next, k)
			}
		}
		remaining = next
	}
	return out, nil
}

// CachingParentsProvider memoizes GetParentMap results from an
// underlying provider. Call NoteMissingKey to record a key that was
// queried but absent (a ghost), so repeated queries for it short-circuit
// without re-hitting the underlying provider.
type CachingParentsProvider struct {
	underlying ParentsProvider
	cache      map[RevisionID][]RevisionID
	missing    map[RevisionID]struct{}
	enabled    bool
}

// NewCachingParentsProvider wraps underlying with a memoizing cache.
func NewCachingParentsProvider(underlying ParentsProvider) *CachingParentsProvider {
	return &CachingParentsProvider{
		underlying: underlying,
		cache:      make(map[RevisionID][]RevisionID),
		missing:    make(map[RevisionID]struct{}),
		enabled:    true,
	}
}

// EnableCache turns memoization on (the default).
func (p *CachingParentsProvider) EnableCache() { p.enabled = true }

// DisableCache turns memoization off and drops the existing cache.
func (p *CachingParentsProvider) DisableCache() {
	p.enabled = false
	p.cache = make(map[RevisionID][]RevisionID)
	p.missing = make(map[RevisionID]struct{})
}

// GetCachedMap returns a snapshot of the currently cached parent map.
func (p *CachingParentsProvider) GetCachedMap() map[RevisionID][]RevisionID {
	out := make(map[RevisionID][]RevisionID, len(p.cache))
	for k, v := range p.cache {
		out[k] = v
	}
	return out
}

// NoteMissingKey records that key was looked up and found to be a
// ghost, so future lookups don't re-query the underlying provider.
func (p *CachingParentsProvider) NoteMissingKey(key RevisionID) {
	p.missing[key] = struct{}{}
}

// Refresh drops any cached ghost-ness for key, so a later GetParentMap
// will re-query the underlying provider. Used when a previously-absent
// revision has since been backfilled.
func (p *CachingParentsProvider) Refresh(key RevisionID) {
	delete(p.missing, key)
	delete(p.cache, key)
}

// GetParentMap implements ParentsProvider.
func (p *CachingParentsProvider) GetParentMap(keys []RevisionID) (map[RevisionID][]RevisionID, error) {
	out := make(map[RevisionID][]RevisionID, len(keys))
	var miss []RevisionID
	for _, k := range keys {
		if !p.enabled {
			miss = append(miss, k)
			continue
		}
		if parents, ok := p.cache[k]; ok {
			out[k] = parents
			continue
		}
		if _, ok := p.missing[k]; ok {
			continue
		}
		miss = append(miss, k)
	}

	if len(miss) == 0 {
		return out, nil
	}

	found, err := p.underlying.GetParentMap(miss)
	if err != nil {
		return nil, err
	}
	for _, k := range miss {
		parents, ok := found[k]
		if !ok {
			if p.enabled {
				p.missing[k] = struct{}{}
			}
			continue
		}
		if p.enabled {
			p.cache[k] = parents
		}
		out[k] = parents
	}
	return out, nil
}
