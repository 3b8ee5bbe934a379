// Package sim is the simulation core: the tick state machine that fans
// Sensing and Deciding out over a worker pool, merges all pending edits in
// a single deterministic commit, and relaxes the environment, with the
// plant graph and field double-buffered so a failed commit simply keeps
// the old buffers.
package sim

import (
	"fmt"

	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

// EditKind tags a pending edit.
type EditKind uint8

const (
	EditAddChild EditKind = iota
	EditRemoveNode
	EditUpdateReserve
	EditEnvDelta
)

var editKindNames = [...]string{"add_child", "remove_node", "update_reserve", "env_delta"}

func (k EditKind) String() string {
	if int(k) < len(editKindNames) {
		return editKindNames[k]
	}
	return fmt.Sprintf("edit(%d)", uint8(k))
}

// Edit is a proposed mutation produced by the deciding stage and consumed
// exactly once by the commit. Which fields are meaningful depends on Kind:
//
//	AddChild:      Target (parent), Spec
//	RemoveNode:    Target
//	UpdateReserve: Target, Delta
//	EnvDelta:      Cell, Scalar, Delta
type Edit struct {
	Kind   EditKind
	Target plant.NodeID
	Spec   plant.ChildSpec
	Delta  float64
	Cell   field.Key
	Scalar field.Scalar
}
