package graph

import "container/heap"

// knownNode is one revision's precomputed position in a KnownGraph.
type knownNode struct {
	key        RevisionID
	parentKeys []RevisionID // nil (distinct from empty) marks a ghost
	childKeys  []RevisionID

	gdfo int // greatest distance from origin

	linearDominator   RevisionID // nearest ancestor starting a linear run
	dominatorDistance int

	ancestorOf []RevisionID // scratch state used during Heads()
}

// KnownGraph is a precomputed acceleration structure for ancestry
// queries when the entire parent map is available up front. It
// maintains, per node, its parents, children, greatest-distance-from-
// origin (GDFO), and linear dominator, so that Heads can skip long
// straight-line runs of history instead of walking them node by node.
type KnownGraph struct {
	nodes map[RevisionID]*knownNode
}

// NewKnownGraph builds a KnownGraph from a complete parent map. Keys
// referenced as parents but absent from parentMap become ghost nodes
// (ParentKeys == nil).
func NewKnownGraph(parentMap map[RevisionID][]RevisionID) *KnownGraph {
	kg := &KnownGraph{nodes: make(map[RevisionID]*knownNode, len(parentMap))}
	kg.initializeNodes(parentMap)
	return kg
}

func (kg *KnownGraph) getOrCreate(key RevisionID) *knownNode {
	if n, ok := kg.nodes[key]; ok {
		return n
	}
	n := &knownNode{key: key}
	kg.nodes[key] = n
	return n
}

func (kg *KnownGraph) initializeNodes(parentMap map[RevisionID][]RevisionID) {
	for key, parentKeys := range parentMap {
		node := kg.getOrCreate(key)
		node.parentKeys = parentKeys
		for _, pk := range parentKeys {
			pnode := kg.getOrCreate(pk)
			pnode.childKeys = append(pnode.childKeys, key)
		}
	}
	kg.findLinearDominators()
	kg.findGDFO()
}

func (kg *KnownGraph) findLinearDominators() {
	checkNode := func(node *knownNode) *knownNode {
		if node.parentKeys == nil || len(node.parentKeys) != 1 {
			node.linearDominator = node.key
			node.dominatorDistance = 0
			return nil
		}
		parent := kg.nodes[node.parentKeys[0]]
		if len(parent.childKeys) > 1 {
			node.linearDominator = node.key
			node.dominatorDistance = 0
			return nil
		}
		if parent.linearDominator != "" {
			node.linearDominator = parent.linearDominator
			node.dominatorDistance = parent.dominatorDistance + 1
			return nil
		}
		return parent
	}

	for _, start := range kg.nodes {
		if start.linearDominator != "" {
			continue
		}
		node := start
		next := checkNode(node)
		if next == nil {
			continue
		}
		var stack []*knownNode
		for next != nil {
			stack = append(stack, node)
			node = next
			next = checkNode(node)
		}
		dominator := node.linearDominator
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			top.linearDominator = dominator
			top.dominatorDistance = node.dominatorDistance + 1
			node = top
		}
	}
}

type gdfoItem struct {
	gdfo int
	node *knownNode
}

type gdfoHeap []gdfoItem

func (h gdfoHeap) Len() int            { return len(h) }
func (h gdfoHeap) Less(i, j int) bool  { return h[i].gdfo < h[j].gdfo }
func (h gdfoHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *gdfoHeap) Push(x interface{}) { *h = append(*h, x.(gdfoItem)) }
func (h *gdfoHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (kg *KnownGraph) findGDFO() {
	todo := &gdfoHeap{}
	for _, node := range kg.nodes {
		if len(node.parentKeys) == 0 {
			node.gdfo = 1
			heap.Push(todo, gdfoItem{1, node})
		}
	}
	for todo.Len() > 0 {
		item := heap.Pop(todo).(gdfoItem)
		gdfo, next := item.gdfo, item.node
		if next.gdfo != 0 && gdfo < next.gdfo {
			continue
		}
		nextGdfo := gdfo + 1
		for _, ck := range next.childKeys {
			child := kg.nodes[ck]
			if child.gdfo != 0 && child.gdfo >= nextGdfo {
				continue
			}
			ready := true
			for _, pk := range child.parentKeys {
				if pk == next.key {
					continue
				}
				if kg.nodes[pk].gdfo == 0 {
					ready = false
					break
				}
			}
			if ready {
				child.gdfo = nextGdfo
				heap.Push(todo, gdfoItem{nextGdfo, child})
			}
		}
	}
}

// Heads returns the subset of keys that no other member of keys
// dominates. Uses GDFO ordering plus linear-dominator short-cuts so
// long straight-line ancestry chains are skipped instead of walked.
func (kg *KnownGraph) Heads(keys []RevisionID) []RevisionID {
	candidates := newRevSet(keys...)
	if candidates.has(NullRevision) {
		candidates.remove(NullRevision)
		if len(candidates) == 0 {
			return []RevisionID{NullRevision}
		}
	}
	if len(candidates) < 2 {
		return candidates.slice()
	}
	return kg.headsFromCandidates(candidates)
}

func (kg *KnownGraph) headsFromCandidates(candidates revSet) []RevisionID {
	q := &gdfoHeap{}
	var toCleanup []*knownNode
	for key := range candidates {
		node := kg.nodes[key]
		node.ancestorOf = []RevisionID{node.key}
		heap.Push(q, gdfoItem{-node.gdfo, node})
		toCleanup = append(toCleanup, node)
	}

	numCandidates := len(candidates)

	for q.Len() > 0 && len(candidates) > 1 {
		item := heap.Pop(q).(gdfoItem)
		next := item.node
		nextAncestorOf := next.ancestorOf

		if len(nextAncestorOf) == numCandidates {
			// Common to every candidate: propagate and stop walking it.
			for _, pk := range next.parentKeys {
				pnode := kg.nodes[pk]
				if pnode.ancestorOf != nil {
					pnode.ancestorOf = nextAncestorOf
				}
			}
			if next.linearDominator != next.key {
				pnode := kg.nodes[next.linearDominator]
				if pnode.ancestorOf != nil {
					pnode.ancestorOf = nextAncestorOf
				}
			}
			continue
		}
		if next.parentKeys == nil {
			continue // ghost
		}

		var parentKeys []RevisionID
		if next.linearDominator != next.key {
			parentKeys = []RevisionID{next.linearDominator}
		} else {
			parentKeys = next.parentKeys
		}

		for _, pk := range parentKeys {
			if candidates.has(pk) {
				candidates.remove(pk)
				if len(candidates) <= 1 {
					break
				}
			}
			pnode := kg.nodes[pk]
			if pnode.ancestorOf == nil {
				pnode.ancestorOf = nextAncestorOf
				heap.Push(q, gdfoItem{-pnode.gdfo, pnode})
				toCleanup = append(toCleanup, pnode)
			} else if !sameAncestry(pnode.ancestorOf, nextAncestorOf) {
				pnode.ancestorOf = mergeAncestry(pnode.ancestorOf, nextAncestorOf)
			}
		}
	}

	for _, n := range toCleanup {
		n.ancestorOf = nil
	}
	return candidates.slice()
}

func sameAncestry(a, b []RevisionID) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := newRevSet(a...), newRevSet(b...)
	for k := range sa {
		if !sb.has(k) {
			return false
		}
	}
	return true
}

func mergeAncestry(a, b []RevisionID) []RevisionID {
	s := newRevSet(a...)
	s.addAll(newRevSet(b...))
	out := s.slice()
	// Deterministic order keeps repeated merges idempotent.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// GetParentMap implements ParentsProvider over the precomputed graph.
func (kg *KnownGraph) GetParentMap(keys []RevisionID) (map[RevisionID][]RevisionID, error) {
	out := make(map[RevisionID][]RevisionID, len(keys))
	for _, k := range keys {
		node, ok := kg.nodes[k]
		if !ok || node.parentKeys == nil {
			continue
		}
		out[k] = node.parentKeys
	}
	return out, nil
}

// GDFO returns the greatest-distance-from-origin of key, and whether
// key is known to this graph.
func (kg *KnownGraph) GDFO(key RevisionID) (int, bool) {
	n, ok := kg.nodes[key]
	if !ok {
		return 0, false
	}
	return n.gdfo, true
}
