package graph

import "sort"

// Graph answers ancestry queries over a ParentsProvider: lowest common
// ancestors, head-set reduction, divergence (difference), topological
// order, and simple ancestor/descendant predicates. It is the
// general-purpose (non-precomputed) engine; KnownGraph offers Heads
// (plus GetParentMap and GDFO) with an in-memory acceleration
// structure when the whole parent map is available up front.
type Graph struct {
	Provider ParentsProvider
}

// NewGraph returns a Graph backed by provider.
func NewGraph(provider ParentsProvider) *Graph {
	return &Graph{Provider: provider}
}

func (g *Graph) newSearcher(seeds []RevisionID) *BreadthFirstSearcher {
	return NewBreadthFirstSearcher(seeds, g.Provider)
}

// ancestorClosure returns the set of revisions reachable from seeds
// (including the seeds themselves), along with the parent map gathered
// along the way. Ghosts are recorded as present keys with a nil parent
// slice never assigned (they are simply absent from parents).
func (g *Graph) ancestorClosure(seeds []RevisionID) (revSet, map[RevisionID][]RevisionID, error) {
	s := g.newSearcher(seeds)
	parents := map[RevisionID][]RevisionID{}
	for !s.Exhausted() {
		frontier := s.nextQuery.clone()
		_, _, err := s.Step()
		if err != nil {
			return nil, nil, err
		}
		for rev, ps := range s.currentParents {
			parents[rev] = ps
		}
		_ = frontier
	}
	return s.seen, parents, nil
}

// Heads returns the subset of keys that no other member of keys
// dominates (is an ancestor of). NullRevision is only a head if it is
// the sole entry.
func (g *Graph) Heads(keys []RevisionID) ([]RevisionID, error) {
	candidates := newRevSet(keys...)
	if candidates.has(NullRevision) {
		candidates.remove(NullRevision)
		if len(candidates) == 0 {
			return []RevisionID{NullRevision}, nil
		}
	}
	if len(candidates) < 2 {
		return candidates.slice(), nil
	}

	searchers := make(map[RevisionID]*BreadthFirstSearcher, len(candidates))
	active := make(map[RevisionID]*BreadthFirstSearcher, len(candidates))
	for c := range candidates {
		s := g.newSearcher([]RevisionID{c})
		// Skip over the candidate's own first frontier (itself), matching
		// bzrlib's heads(): the first step just marks it seen.
		if _, _, err := s.Step(); err != nil {
			return nil, err
		}
		searchers[c] = s
		active[c] = s
	}

	commonWalker := g.newSearcher(nil)

	for len(active) > 0 {
		if !commonWalker.Exhausted() {
			if _, _, err := commonWalker.Step(); err != nil {
				return nil, err
			}
		}

		ancestors := revSet{}
		for candidate, s := range active {
			if s.Exhausted() {
				delete(active, candidate)
				continue
			}
			present, ghosts, err := s.Step()
			if err != nil {
				return nil, err
			}
			for _, a := range present {
				ancestors.add(a)
			}
			for _, a := range ghosts {
				ancestors.add(a)
			}
			if s.Exhausted() {
				delete(active, candidate)
			}
		}

		newCommon := revSet{}
		for ancestor := range ancestors {
			if candidates.has(ancestor) {
				candidates.remove(ancestor)
				delete(searchers, ancestor)
				delete(active, ancestor)
			}
			if commonWalker.hasSeen(ancestor) {
				for _, s := range searchers {
					s.StopSearchingAny([]RevisionID{ancestor})
				}
				continue
			}
			allSeen := true
			for _, s := range searchers {
				if !s.hasSeen(ancestor) {
					allSeen = false
					break
				}
			}
			if allSeen && len(searchers) > 0 {
				newCommon.add(ancestor)
				for _, s := range searchers {
					seenAncestors, err := s.FindSeenAncestors([]RevisionID{ancestor})
					if err != nil {
						return nil, err
					}
					s.StopSearchingAny(seenAncestors)
				}
			}
		}
		if _, _, err := commonWalker.StartSearching(newCommon.slice()); err != nil {
			return nil, err
		}
	}

	return candidates.slice(), nil
}

// IsAncestor reports whether a is an ancestor of (or equal to) d.
func (g *Graph) IsAncestor(a, d RevisionID) (bool, error) {
	heads, err := g.Heads([]RevisionID{a, d})
	if err != nil {
		return false, err
	}
	return len(heads) == 1 && heads[0] == d, nil
}

// IsBetween reports whether rev lies in the ancestry range
// [lower, upper]: upper is a descendant of (or equal to) rev, and rev
// is a descendant of (or equal to) lower.
func (g *Graph) IsBetween(rev, lower, upper RevisionID) (bool, error) {
	belowUpper, err := g.IsAncestor(rev, upper)
	if err != nil {
		return false, err
	}
	if !belowUpper {
		return false, nil
	}
	return g.IsAncestor(lower, rev)
}

// FindLCA returns the set of lowest common ancestors of revisions: the
// common ancestors none of which is an ancestor of another common
// ancestor. May return more than one element when criss-cross merges
// leave no unique LCA.
func (g *Graph) FindLCA(revisions ...RevisionID) ([]RevisionID, error) {
	if len(revisions) == 0 {
		return nil, nil
	}
	var common revSet
	for i, r := range revisions {
		anc, _, err := g.ancestorClosure([]RevisionID{r})
		if err != nil {
			return nil, err
		}
		if i == 0 {
			common = anc
		} else {
			common = common.intersect(anc)
		}
	}
	if len(common) == 0 {
		return nil, nil
	}
	return g.Heads(common.slice())
}

// FindUniqueLCA applies FindLCA repeatedly to the current LCA set until
// it converges to a single element. Returns NoCommonAncestorError if
// left and right share no ancestor at all.
func (g *Graph) FindUniqueLCA(left, right RevisionID) (RevisionID, error) {
	current := []RevisionID{left, right}
	for i := 0; i < 10000; i++ {
		lca, err := g.FindLCA(current...)
		if err != nil {
			return "", err
		}
		if len(lca) == 0 {
			return "", &NoCommonAncestorError{A: left, B: right}
		}
		if len(lca) == 1 {
			return lca[0], nil
		}
		current = lca
	}
	return "", &algorithmInvariantError{msg: "FindUniqueLCA did not converge"}
}

// FindDifference partitions the ancestors of left and right (each
// inclusive of the revision itself) into those unique to left, and
// those unique to right.
func (g *Graph) FindDifference(left, right RevisionID) (leftOnly, rightOnly []RevisionID, err error) {
	leftAnc, _, err := g.ancestorClosure([]RevisionID{left})
	if err != nil {
		return nil, nil, err
	}
	rightAnc, _, err := g.ancestorClosure([]RevisionID{right})
	if err != nil {
		return nil, nil, err
	}
	return leftAnc.diff(rightAnc).slice(), rightAnc.diff(leftAnc).slice(), nil
}

// FindUniqueAncestors returns the ancestors reachable from unique that
// are not reachable from any of common.
func (g *Graph) FindUniqueAncestors(unique RevisionID, common []RevisionID) ([]RevisionID, error) {
	uniqueAnc, _, err := g.ancestorClosure([]RevisionID{unique})
	if err != nil {
		return nil, err
	}
	if len(common) == 0 {
		return uniqueAnc.slice(), nil
	}
	commonAnc, _, err := g.ancestorClosure(common)
	if err != nil {
		return nil, err
	}
	return uniqueAnc.diff(commonAnc).slice(), nil
}

// IterAncestry returns (revision, parents) pairs for the transitive
// closure of keys. A nil parents slice marks a ghost.
func (g *Graph) IterAncestry(keys []RevisionID) ([]RevisionID, map[RevisionID][]RevisionID, error) {
	seen, parents, err := g.ancestorClosure(keys)
	if err != nil {
		return nil, nil, err
	}
	order, err := g.IterTopoOrder(seen.slice())
	if err != nil {
		return nil, nil, err
	}
	result := make(map[RevisionID][]RevisionID, len(seen))
	for rev := range seen {
		if ps, ok := parents[rev]; ok {
			result[rev] = ps
		} else {
			result[rev] = nil // ghost
		}
	}
	return order, result, nil
}

// IterTopoOrder returns keys ordered so that every parent of a key that
// is itself in keys appears strictly before that key. Ghost parents
// (or parents outside keys) are treated as absent edges.
func (g *Graph) IterTopoOrder(keys []RevisionID) ([]RevisionID, error) {
	keySet := newRevSet(keys...)
	parentMap, err := g.Provider.GetParentMap(keys)
	if err != nil {
		return nil, err
	}

	// Kahn's algorithm restricted to keys, counting only in-set edges.
	children := map[RevisionID][]RevisionID{}
	indegree := map[RevisionID]int{}
	for k := range keySet {
		indegree[k] = 0
	}
	for k := range keySet {
		for _, p := range parentMap[k] {
			if keySet.has(p) {
				children[p] = append(children[p], k)
				indegree[k]++
			}
		}
	}

	var ready []RevisionID
	for k := range keySet {
		if indegree[k] == 0 {
			ready = append(ready, k)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	var out []RevisionID
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		next := children[n]
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, c := range next {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	}
	if len(out) != len(keySet) {
		return nil, &algorithmInvariantError{msg: "cycle detected among keys during topological sort"}
	}
	return out, nil
}

// FindMergeOrder orders lcaRevisions by how they were merged into tip:
// a depth-first, left-parent-first walk back from tip, recording each
// LCA the first time it is reached.
func (g *Graph) FindMergeOrder(tip RevisionID, lcaRevisions []RevisionID) ([]RevisionID, error) {
	if len(lcaRevisions) == 1 {
		return append([]RevisionID(nil), lcaRevisions...), nil
	}
	lookingFor := newRevSet(lcaRevisions...)
	stack := []RevisionID{tip}
	stop := revSet{}
	var found []RevisionID

	for len(stack) > 0 && len(lookingFor) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stop.add(next)

		if lookingFor.has(next) {
			found = append(found, next)
			lookingFor.remove(next)
			if len(lookingFor) == 1 {
				for remaining := range lookingFor {
					found = append(found, remaining)
				}
				break
			}
			continue
		}

		parentMap, err := g.Provider.GetParentMap([]RevisionID{next})
		if err != nil {
			return nil, err
		}
		parentIDs, ok := parentMap[next]
		if !ok || len(parentIDs) == 0 {
			continue // ghost or root
		}
		for i := len(parentIDs) - 1; i >= 0; i-- {
			p := parentIDs[i]
			if !stop.has(p) {
				stack = append(stack, p)
			}
			stop.add(p)
		}
	}
	return found, nil
}
