// Package plant holds the structural graph grown by the L-system:
// a forest of nodes linked by index, where topology determines geometry.
package plant

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// NodeID is a stable index into the graph's node table.
// IDs are minted strictly increasing and never reused.
type NodeID int32

// NoParent marks a root node.
const NoParent NodeID = -1

// Kind tags a node's structural role.
type Kind uint8

const (
	KindSeed Kind = iota
	KindStem
	KindBranch
	KindLeaf
	KindMeristem

	numKinds
)

// NumKinds is the number of node kinds, for per-kind parameter tables.
const NumKinds = int(numKinds)

var kindNames = [NumKinds]string{"seed", "stem", "branch", "leaf", "meristem"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a config/rule-file name to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// ChildSpec describes a node to be attached under a parent.
// Dir need not be normalized; AddChild normalizes it.
type ChildSpec struct {
	Kind    Kind
	Dir     r3.Vec
	Length  float64
	Reserve float64
}

// Node is one structural element of the plant.
// Pos is the tip of the node's segment and is always derived from the
// parent's tip plus Dir*Length; the graph never stores independent geometry.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID // NoParent for roots; weak reference, validated at read time
	Children []NodeID
	Pos      r3.Vec // segment tip
	Dir      r3.Vec // unit growth direction
	Length   float64
	AgeTicks int32
	Reserve  float64
	Alive    bool
}

// Base returns the segment's base position (the parent's tip).
func (n *Node) Base() r3.Vec {
	return r3.Sub(n.Pos, r3.Scale(n.Length, n.Dir))
}

// Apex reports whether the node has no living children.
// Growth rules use this to restrict productions to branch tips.
func (n *Node) Apex() bool {
	return len(n.Children) == 0
}
