package plant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Graph is the plant's node table. Slot i holds the node with ID i;
// slots of removed nodes keep their (dead) entry so IDs are never reused.
// The graph is not safe for concurrent mutation; the simulation mutates it
// only from the single-writer commit phase and otherwise treats committed
// graphs as read-only snapshots.
type Graph struct {
	nodes []Node
	live  int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Len returns the number of living nodes.
func (g *Graph) Len() int { return g.live }

// Minted returns the total number of IDs ever minted, dead slots included.
// Valid IDs are [0, Minted).
func (g *Graph) Minted() int { return len(g.nodes) }

// Node returns a copy of the node with the given ID.
// The second result is false if the ID was never minted or the node is dead.
func (g *Graph) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(g.nodes) || !g.nodes[id].Alive {
		return Node{}, false
	}
	return g.nodes[id], true
}

// at returns a pointer into the table, alive or dead, nil if never minted.
func (g *Graph) at(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return &g.nodes[id]
}

// Alive reports whether the node exists and is living.
func (g *Graph) Alive(id NodeID) bool {
	n := g.at(id)
	return n != nil && n.Alive
}

// EachLive calls fn for every living node in ascending ID order.
// fn receives a pointer into the table and must not retain it.
func (g *Graph) EachLive(fn func(n *Node)) {
	for i := range g.nodes {
		if g.nodes[i].Alive {
			fn(&g.nodes[i])
		}
	}
}

// Roots returns the IDs of living root nodes in ascending order.
func (g *Graph) Roots() []NodeID {
	var roots []NodeID
	for i := range g.nodes {
		if g.nodes[i].Alive && g.nodes[i].Parent == NoParent {
			roots = append(roots, g.nodes[i].ID)
		}
	}
	return roots
}

// AddRoot creates a parentless node at the given base position.
func (g *Graph) AddRoot(kind Kind, base r3.Vec, spec ChildSpec) NodeID {
	dir := unitOr(spec.Dir, r3.Vec{Y: 1})
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		ID:      id,
		Kind:    kind,
		Parent:  NoParent,
		Pos:     r3.Add(base, r3.Scale(spec.Length, dir)),
		Dir:     dir,
		Length:  spec.Length,
		Reserve: spec.Reserve,
		Alive:   true,
	})
	g.live++
	return id
}

// AddChild attaches a new node under parent, deriving its tip position from
// the parent's tip. The new ID is strictly greater than all existing IDs.
func (g *Graph) AddChild(parent NodeID, spec ChildSpec) (NodeID, error) {
	p := g.at(parent)
	if p == nil || !p.Alive {
		return 0, fmt.Errorf("add child: parent %d does not exist", parent)
	}
	dir := unitOr(spec.Dir, p.Dir)
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		ID:      id,
		Kind:    spec.Kind,
		Parent:  parent,
		Pos:     r3.Add(p.Pos, r3.Scale(spec.Length, dir)),
		Dir:     dir,
		Length:  spec.Length,
		Reserve: spec.Reserve,
		Alive:   true,
	})
	// re-resolve: append may have reallocated the table
	g.nodes[parent].Children = append(g.nodes[parent].Children, id)
	g.live++
	return id, nil
}

// Remove kills the node and all its descendants, detaching the subtree from
// its parent. It returns the removed IDs in ascending order.
func (g *Graph) Remove(id NodeID) ([]NodeID, error) {
	n := g.at(id)
	if n == nil || !n.Alive {
		return nil, fmt.Errorf("remove: node %d does not exist", id)
	}
	if n.Parent != NoParent {
		p := g.at(n.Parent)
		if p != nil {
			p.Children = deleteID(p.Children, id)
		}
	}
	removed := g.Subtree(id)
	for _, rid := range removed {
		g.nodes[rid].Alive = false
		g.nodes[rid].Children = nil
		g.live--
	}
	return removed, nil
}

// Subtree returns the IDs of the living subtree rooted at id, ascending.
// Children always have larger IDs than their parent, so a single forward
// scan over a seen-set yields the closure.
func (g *Graph) Subtree(id NodeID) []NodeID {
	if !g.Alive(id) {
		return nil
	}
	in := map[NodeID]bool{id: true}
	out := []NodeID{id}
	for i := int(id) + 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		if n.Alive && in[n.Parent] {
			in[n.ID] = true
			out = append(out, n.ID)
		}
	}
	return out
}

// AddReserve adjusts a living node's reserve by delta. The caller is
// responsible for having accumulated concurrent deltas beforehand.
func (g *Graph) AddReserve(id NodeID, delta float64) error {
	n := g.at(id)
	if n == nil || !n.Alive {
		return fmt.Errorf("add reserve: node %d does not exist", id)
	}
	v := n.Reserve + delta
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("add reserve: node %d reserve became non-finite", id)
	}
	n.Reserve = v
	return nil
}

// AgeAll advances every living node's age by one tick.
func (g *Graph) AgeAll() {
	for i := range g.nodes {
		if g.nodes[i].Alive {
			g.nodes[i].AgeTicks++
		}
	}
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes: make([]Node, len(g.nodes)),
		live:  g.live,
	}
	copy(c.nodes, g.nodes)
	for i := range c.nodes {
		if len(c.nodes[i].Children) > 0 {
			kids := make([]NodeID, len(c.nodes[i].Children))
			copy(kids, c.nodes[i].Children)
			c.nodes[i].Children = kids
		}
	}
	return c
}

// Validate checks the forest invariant: every living non-root has exactly
// one living parent that lists it as a child, parent links never cycle, and
// geometry is consistent with topology.
func (g *Graph) Validate() error {
	for i := range g.nodes {
		n := &g.nodes[i]
		if !n.Alive {
			continue
		}
		if n.ID != NodeID(i) {
			return fmt.Errorf("node at slot %d has ID %d", i, n.ID)
		}
		if n.Parent != NoParent {
			if n.Parent >= n.ID {
				return fmt.Errorf("node %d: parent %d not older than child", n.ID, n.Parent)
			}
			p := g.at(n.Parent)
			if p == nil || !p.Alive {
				return fmt.Errorf("node %d: dead parent %d", n.ID, n.Parent)
			}
			if !containsID(p.Children, n.ID) {
				return fmt.Errorf("node %d: parent %d does not list it as child", n.ID, n.Parent)
			}
			want := r3.Add(p.Pos, r3.Scale(n.Length, n.Dir))
			if r3.Norm(r3.Sub(want, n.Pos)) > 1e-9 {
				return fmt.Errorf("node %d: position drifted from topology", n.ID)
			}
		}
		seen := 0
		for _, c := range n.Children {
			cn := g.at(c)
			if cn == nil || !cn.Alive {
				return fmt.Errorf("node %d: dead child %d", n.ID, c)
			}
			if cn.Parent != n.ID {
				return fmt.Errorf("node %d: child %d has parent %d", n.ID, c, cn.Parent)
			}
			seen++
		}
		if math.IsNaN(n.Reserve) {
			return fmt.Errorf("node %d: reserve is NaN", n.ID)
		}
	}
	return nil
}

func unitOr(v, fallback r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return fallback
	}
	return r3.Unit(v)
}

func containsID(ids []NodeID, id NodeID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func deleteID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
