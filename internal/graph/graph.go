package graph

import "sync"

// Graph is an in-memory directed multigraph of Nodes and Edges, keyed
// by node ID. It is the materialized form the lazy graph manager
// builds up from loaded partitions (spec §9: "store it as node records
// keyed by stable string IDs plus an edge list; do not attempt to
// encode parent ownership structurally").
//
// Graph is safe for concurrent use: callers take the RLock for reads
// and the Lock for mutation via the exported locking helpers, and
// must never hold a lock across an I/O or channel-receive boundary.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node

	// outgoing[src] -> edges where Source == src
	outgoing map[string][]*Edge
	// incoming[dst] -> edges where Target == dst
	incoming map[string][]*Edge
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
	}
}

// Lock/Unlock/RLock/RUnlock expose the graph's mutex directly so
// callers (lazygraph) can batch several mutations under one critical
// section without re-entering per-call locking.
func (g *Graph) Lock()    { g.mu.Lock() }
func (g *Graph) Unlock()  { g.mu.Unlock() }
func (g *Graph) RLock()   { g.mu.RLock() }
func (g *Graph) RUnlock() { g.mu.RUnlock() }

// InsertNodeLocked inserts or replaces a node. Caller must hold Lock.
func (g *Graph) InsertNodeLocked(n *Node) {
	g.nodes[n.ID] = n
}

// InsertEdgeLocked inserts an edge into both adjacency indexes. Caller
// must hold Lock. Duplicate edges (by DedupKey) are not collapsed here;
// the partition store is the de-duplication boundary (spec §3.2).
func (g *Graph) InsertEdgeLocked(e *Edge) {
	g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	g.incoming[e.Target] = append(g.incoming[e.Target], e)
}

// RemoveNodesLocked deletes the given node IDs and every edge incident
// to them (spec §4.6.2: unload "removes the nodes, which removes
// incident intra-partition edges"). Caller must hold Lock.
func (g *Graph) RemoveNodesLocked(ids []string) {
	dead := make(map[string]bool, len(ids))
	for _, id := range ids {
		dead[id] = true
		delete(g.nodes, id)
		delete(g.outgoing, id)
		delete(g.incoming, id)
	}
	for src, edges := range g.outgoing {
		filtered := edges[:0]
		for _, e := range edges {
			if !dead[e.Target] {
				filtered = append(filtered, e)
			}
		}
		g.outgoing[src] = filtered
	}
	for dst, edges := range g.incoming {
		filtered := edges[:0]
		for _, e := range edges {
			if !dead[e.Source] {
				filtered = append(filtered, e)
			}
		}
		g.incoming[dst] = filtered
	}
}

// GetNodeLocked returns a clone of the node with the given ID, or nil.
// Caller must hold RLock (or Lock).
func (g *Graph) GetNodeLocked(id string) *Node {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.Clone()
}

// OutgoingLocked returns clones of the node's outgoing edges. Caller
// must hold RLock (or Lock).
func (g *Graph) OutgoingLocked(id string) []*Edge {
	edges := g.outgoing[id]
	out := make([]*Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}

// IncomingLocked returns clones of the node's incoming edges. Caller
// must hold RLock (or Lock).
func (g *Graph) IncomingLocked(id string) []*Edge {
	edges := g.incoming[id]
	out := make([]*Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}

// NodeCountLocked and EdgeCountLocked report the current sizes. Caller
// must hold RLock (or Lock).
func (g *Graph) NodeCountLocked() int {
	return len(g.nodes)
}

func (g *Graph) EdgeCountLocked() int {
	n := 0
	for _, edges := range g.outgoing {
		n += len(edges)
	}
	return n
}

// IterNodes returns clones of every node currently in the graph. Used
// by the partitioner, which operates on a fully materialized
// in-memory graph rather than the lazy manager.
func (g *Graph) IterNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Clone())
	}
	return out
}

// IterEdges returns clones of every edge currently in the graph.
func (g *Graph) IterEdges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0)
	for _, edges := range g.outgoing {
		for _, e := range edges {
			out = append(out, e.Clone())
		}
	}
	return out
}

// HasNode reports whether id is present, taking its own read lock.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}
