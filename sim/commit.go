package sim

import (
	"fmt"
	"math"

	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
	"github.com/verdantlab/thicket/systems"
)

type commitStats struct {
	spawned int
	pruned  int
	edits   int
}

type envKey struct {
	Cell   field.Key
	Scalar field.Scalar
}

// commit merges every pending edit of the tick into fresh graph and field
// buffers. The merge order is fixed: edits are visited by producer slot
// (node index order) and position within the slot buffer, never by the
// wall-clock order workers finished in. The conflict policy:
//
//   - RemoveNode cascades to the whole subtree; edits produced by or
//     targeting a node removed this tick are discarded (removal wins).
//   - UpdateReserve deltas accumulate additively per node.
//   - EnvDelta deltas accumulate additively per (cell, scalar) and are
//     clamped exactly once after full accumulation.
//   - AddChild mints strictly increasing IDs in merge order.
//
// An edit referencing a node that was already dead at tick start, or an
// accumulation that goes non-finite, fails the whole tick: the caller
// discards the returned buffers and keeps the old snapshots.
func (e *Engine) commit(tick int32) (*plant.Graph, *field.Field, commitStats, error) {
	var stats commitStats

	fail := func(reason string, err error) (*plant.Graph, *field.Field, commitStats, error) {
		return nil, nil, commitStats{}, &CommitError{Tick: tick, Reason: reason, Err: err}
	}

	newGraph := e.graph.Clone()
	newField := e.fld.Clone()
	envAcc := make(map[envKey]float64)
	resAcc := make(map[plant.NodeID]float64)

	// Pass 1: removals in merge order, tracking who fell. A removal whose
	// producer was itself removed by an earlier edit is discarded, so its
	// would-be victims survive. IDs mint strictly increasing down the
	// tree, so a cascade remover always sits at an earlier slot than its
	// victims and one merge-order pass settles the precedence. Overlapping
	// subtrees are benign: a target already gone this tick is skipped.
	removed := make(map[plant.NodeID]bool)
	for slot := range e.edits {
		producer := e.nodes[slot].ID
		for _, ed := range e.edits[slot] {
			if ed.Kind != EditRemoveNode {
				continue
			}
			if !e.graph.Alive(ed.Target) {
				return fail(fmt.Sprintf("remove_node references nonexistent node %d", ed.Target), nil)
			}
			if removed[producer] || removed[ed.Target] {
				continue
			}
			ids, err := newGraph.Remove(ed.Target)
			if err != nil {
				return fail("remove failed", err)
			}
			for _, rid := range ids {
				removed[rid] = true
				n, _ := e.graph.Node(rid)
				dens := e.cfg.KindParams(n.Kind).Density
				if dens > 0 {
					k := envKey{systems.CellKey(n.Pos, e.cfg.World.CellSize), field.Density}
					envAcc[k] -= dens
				}
			}
			stats.pruned += len(ids)
			stats.edits++
		}
	}

	// Spawns and accumulation in merge order, skipping edits whose
	// producer or target was removed this tick.
	for slot := range e.edits {
		producer := e.nodes[slot].ID
		if removed[producer] {
			continue
		}
		for _, ed := range e.edits[slot] {
			switch ed.Kind {
			case EditAddChild:
				if removed[ed.Target] {
					continue
				}
				if !e.graph.Alive(ed.Target) {
					return fail(fmt.Sprintf("add_child references nonexistent parent %d", ed.Target), nil)
				}
				id, err := newGraph.AddChild(ed.Target, ed.Spec)
				if err != nil {
					return fail("add_child failed", err)
				}
				child, _ := newGraph.Node(id)
				dens := e.cfg.KindParams(child.Kind).Density
				if dens > 0 {
					k := envKey{systems.CellKey(child.Pos, e.cfg.World.CellSize), field.Density}
					envAcc[k] += dens
				}
				stats.spawned++
				stats.edits++

			case EditUpdateReserve:
				if removed[ed.Target] {
					continue
				}
				if !e.graph.Alive(ed.Target) {
					return fail(fmt.Sprintf("update_reserve references nonexistent node %d", ed.Target), nil)
				}
				resAcc[ed.Target] += ed.Delta
				stats.edits++

			case EditEnvDelta:
				envAcc[envKey{ed.Cell, ed.Scalar}] += ed.Delta
				stats.edits++
			}
		}
	}

	// Accumulated reserve deltas: additive, so map order cannot matter.
	for id, delta := range resAcc {
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			return fail(fmt.Sprintf("reserve delta for node %d is non-finite", id), nil)
		}
		if err := newGraph.AddReserve(id, delta); err != nil {
			return fail("reserve update failed", err)
		}
	}

	// Accumulated environment deltas: clamped once per (cell, scalar).
	for k, delta := range envAcc {
		if err := newField.Apply(k.Cell, k.Scalar, delta); err != nil {
			return fail("environment update failed", err)
		}
	}

	newGraph.AgeAll()

	if err := newGraph.Validate(); err != nil {
		return fail("post-commit graph invariant violated", err)
	}

	return newGraph, newField, stats, nil
}
