package graph

// BreadthFirstSearcher performs a parallel breadth-first search of the
// ancestry of a set of revisions. It tracks every revision it has ever
// observed (Seen), the layer it is about to expand (the frontier), and
// revisions explicitly excluded from future expansion (stopped) — a
// direct port of bzrlib's _BreadthFirstSearcher.
type BreadthFirstSearcher struct {
	provider ParentsProvider

	nextQuery revSet
	seen      revSet
	started   revSet
	stopped   revSet

	iterations int

	currentPresent revSet
	currentGhosts  revSet
	currentParents map[RevisionID][]RevisionID
}

// NewBreadthFirstSearcher seeds a searcher with the given starting
// revisions.
func NewBreadthFirstSearcher(seeds []RevisionID, provider ParentsProvider) *BreadthFirstSearcher {
	return &BreadthFirstSearcher{
		provider:       provider,
		nextQuery:      newRevSet(seeds...),
		seen:           revSet{},
		started:        newRevSet(seeds...),
		stopped:        revSet{},
		currentPresent: revSet{},
		currentGhosts:  revSet{},
		currentParents: map[RevisionID][]RevisionID{},
	}
}

// Seen returns every revision the searcher has observed so far.
func (s *BreadthFirstSearcher) Seen() []RevisionID { return s.seen.slice() }

func (s *BreadthFirstSearcher) hasSeen(k RevisionID) bool { return s.seen.has(k) }

// doQuery queries the parents of revisions, folding them into Seen,
// and separates present revisions from ghosts (referenced but absent).
func (s *BreadthFirstSearcher) doQuery(revisions revSet) (found, ghosts, next revSet, parents map[RevisionID][]RevisionID, err error) {
	s.seen.addAll(revisions)

	parentMap, err := s.provider.GetParentMap(revisions.slice())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	found = revSet{}
	next = revSet{}
	for rev, ps := range parentMap {
		found.add(rev)
		for _, p := range ps {
			if !s.seen.has(p) {
				next.add(p)
			}
		}
	}
	ghosts = revisions.diff(found)
	return found, ghosts, next, parentMap, nil
}

// Step advances the search by one layer: it queries the current
// frontier and returns the frontier members found present and those
// found absent (ghosts); the present members' parents become the next
// frontier. An empty-empty result means the search is exhausted (no
// more frontier to expand).
func (s *BreadthFirstSearcher) Step() (present, ghosts []RevisionID, err error) {
	s.iterations++
	found, gh, next, parents, err := s.doQuery(s.nextQuery)
	if err != nil {
		return nil, nil, err
	}
	s.currentPresent = found
	s.currentGhosts = gh
	s.currentParents = parents
	s.nextQuery = next
	// Ghosts are implicit stop points: otherwise a search cannot be
	// repeated consistently once the ghost is later backfilled.
	s.stopped.addAll(gh)
	return found.slice(), gh.slice(), nil
}

// Exhausted reports whether a further Step would discover nothing.
func (s *BreadthFirstSearcher) Exhausted() bool {
	return len(s.nextQuery) == 0
}

// FindSeenAncestors walks only within the Seen set to collect the
// transitive closure of ancestors below revisions that have already
// been observed by this searcher.
func (s *BreadthFirstSearcher) FindSeenAncestors(revisions []RevisionID) ([]RevisionID, error) {
	pending := s.seen.intersect(newRevSet(revisions...))
	seenAncestors := pending.clone()
	notSearchedYet := s.nextQuery

	pending = pending.diff(notSearchedYet)
	for len(pending) > 0 {
		parentMap, err := s.provider.GetParentMap(pending.slice())
		if err != nil {
			return nil, err
		}
		var allParents []RevisionID
		for _, ps := range parentMap {
			allParents = append(allParents, ps...)
		}
		nextPending := s.seen.intersect(newRevSet(allParents...)).diff(seenAncestors)
		seenAncestors.addAll(nextPending)
		nextPending = nextPending.diff(notSearchedYet)
		pending = nextPending
	}
	return seenAncestors.slice(), nil
}

// StopSearchingAny removes any of revisions from the search frontier so
// they (and, transitively, parents referenced only by them) are not
// expanded further. It does not retroactively affect already-seen
// ancestors; callers must call FindSeenAncestors first if they need
// those excluded too.
func (s *BreadthFirstSearcher) StopSearchingAny(revisions []RevisionID) []RevisionID {
	toStop := newRevSet(revisions...)

	stoppedPresent := s.currentPresent.intersect(toStop)
	stoppedGhosts := s.currentGhosts.intersect(toStop)
	stopped := stoppedPresent.union(stoppedGhosts)

	s.currentPresent = s.currentPresent.diff(stopped)
	s.currentGhosts = s.currentGhosts.diff(stopped)

	// Stopping a revision should stop queuing its parents, unless
	// another still-live revision also references them.
	refcount := map[RevisionID]int{}
	for rev := range stoppedPresent {
		for _, p := range s.currentParents[rev] {
			refcount[p]++
		}
	}
	for _, ps := range s.currentParents {
		for _, p := range ps {
			if _, ok := refcount[p]; ok {
				refcount[p]--
			}
		}
	}
	for p, refs := range refcount {
		if refs == 0 {
			s.nextQuery.remove(p)
		}
	}

	s.nextQuery = s.nextQuery.diff(toStop)
	s.stopped.addAll(stopped)
	s.stopped.addAll(toStop)
	return stopped.slice()
}

// StartSearching re-injects revisions into the frontier so their
// parents are queried on the next Step.
func (s *BreadthFirstSearcher) StartSearching(revisions []RevisionID) (present, ghosts []RevisionID, err error) {
	toAdd := newRevSet(revisions...)
	s.started.addAll(toAdd)

	found, gh, next, parents, err := s.doQuery(toAdd)
	if err != nil {
		return nil, nil, err
	}
	s.stopped.addAll(gh)
	s.currentPresent.addAll(found)
	s.currentGhosts.addAll(gh)
	s.nextQuery.addAll(next)
	for k, v := range parents {
		s.currentParents[k] = v
	}
	return found.slice(), gh.slice(), nil
}
