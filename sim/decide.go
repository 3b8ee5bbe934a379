package sim

import (
	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/grammar"
	"github.com/verdantlab/thicket/plant"
	"github.com/verdantlab/thicket/systems"
)

// decideNode maps one node's (state, stimulus) to pending edits: the
// matched grammar production plus the kind's metabolic exchange with the
// environment. Pure against the snapshots; the only write is appending to
// the node's own slot buffer.
func (e *Engine) decideNode(i int) {
	n := &e.nodes[i]
	st := e.stimuli[i]

	if rule, ok := e.rules.Match(n, st); ok {
		e.applyRule(i, n, rule)
	}
	e.metabolize(i, n, st)
}

// applyRule expands a production into structural edits.
func (e *Engine) applyRule(i int, n *plant.Node, rule *grammar.Rule) {
	if rule.Then.Prune {
		e.emit(i, Edit{Kind: EditRemoveNode, Target: n.ID})
		return
	}
	if len(rule.Then.Spawn) > 0 {
		rng := nodeRNG(e.seed, e.tick+1, n.ID)
		for _, sp := range rule.Then.Spawn {
			e.emit(i, Edit{
				Kind:   EditAddChild,
				Target: n.ID,
				Spec:   sp.ChildSpec(n.Dir, rng),
			})
		}
	}
	if rule.Then.ReserveCost > 0 {
		e.emit(i, Edit{Kind: EditUpdateReserve, Target: n.ID, Delta: -rule.Then.ReserveCost})
	}
}

// metabolize emits the node's per-tick exchange with the environment:
// photosynthesis from sensed light, moisture uptake from the base cell,
// maintenance drain, and reserve transport to needy children. All of it
// is expressed as additive edits, so the merge is order-independent.
func (e *Engine) metabolize(i int, n *plant.Node, st systems.Stimulus) {
	kp := e.cfg.KindParams(n.Kind)

	if kp.PhotoRate > 0 && st.Light > 0 {
		e.emit(i, Edit{Kind: EditUpdateReserve, Target: n.ID, Delta: kp.PhotoRate * st.Light})
	}

	if kp.UptakeRate > 0 && st.Moisture > 0 {
		take := kp.UptakeRate * st.Moisture
		e.emit(i, Edit{Kind: EditUpdateReserve, Target: n.ID, Delta: take})
		e.emit(i, Edit{
			Kind:   EditEnvDelta,
			Cell:   systems.CellKey(n.Base(), e.cfg.World.CellSize),
			Scalar: field.Moisture,
			Delta:  -take,
		})
	}

	if kp.Maintenance > 0 {
		e.emit(i, Edit{Kind: EditUpdateReserve, Target: n.ID, Delta: -kp.Maintenance})
	}

	t := e.cfg.Plant.Transport
	if t.Rate > 0 && n.Reserve > t.Surplus {
		available := n.Reserve - t.Surplus
		for _, cid := range n.Children {
			if available <= 0 {
				break
			}
			child, ok := e.graph.Node(cid)
			if !ok || child.Reserve >= t.Need {
				continue
			}
			move := t.Rate
			if move > available {
				move = available
			}
			available -= move
			e.emit(i, Edit{Kind: EditUpdateReserve, Target: n.ID, Delta: -move})
			e.emit(i, Edit{Kind: EditUpdateReserve, Target: cid, Delta: move})
		}
	}
}

func (e *Engine) emit(i int, ed Edit) {
	e.edits[i] = append(e.edits[i], ed)
}
