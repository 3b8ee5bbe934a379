// Package grammar holds the L-system production rules: per-kind rule
// tables matched against a node's state and stimulus, with an explicit
// total priority order so matching never depends on declaration or
// scheduling order.
package grammar

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/plant"
	"github.com/verdantlab/thicket/systems"
)

// Bounds is an optional closed interval constraint. A nil endpoint is
// unconstrained.
type Bounds struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// Contains reports whether v satisfies the bounds.
func (b Bounds) Contains(v float64) bool {
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

// When is a rule's left-hand side: threshold conditions over the node's
// stimulus, reserve and age.
type When struct {
	Light       Bounds `yaml:"light"`
	Moisture    Bounds `yaml:"moisture"`
	Temperature Bounds `yaml:"temperature"`
	Crowding    Bounds `yaml:"crowding"`
	Reserve     Bounds `yaml:"reserve"`
	AgeTicks    Bounds `yaml:"age_ticks"`
}

// Matches evaluates the conditions. Pure: same inputs, same answer.
func (w When) Matches(n *plant.Node, st systems.Stimulus) bool {
	return w.Light.Contains(st.Light) &&
		w.Moisture.Contains(st.Moisture) &&
		w.Temperature.Contains(st.Temperature) &&
		w.Crowding.Contains(st.Crowding) &&
		w.Reserve.Contains(n.Reserve) &&
		w.AgeTicks.Contains(float64(n.AgeTicks))
}

// SpawnSpec is a replacement template for one new child node. Pitch tilts
// away from the parent's growth direction, yaw rotates around it, and
// YawJitter adds a deterministic per-node random offset to the yaw.
type SpawnSpec struct {
	Kind      plant.Kind
	Pitch     float64 // radians from parent direction
	Yaw       float64 // radians around parent direction
	YawJitter float64 // radians, uniform in [-j, j]
	Length    float64
	Reserve   float64
}

// ChildSpec derives the child's geometry from the parent direction.
// rng is the node's own deterministic stream for this tick.
func (sp SpawnSpec) ChildSpec(parentDir r3.Vec, rng *rand.Rand) plant.ChildSpec {
	dir := parentDir
	if sp.Pitch != 0 {
		axis := r3.Cross(parentDir, r3.Vec{Y: 1})
		if r3.Norm(axis) < 1e-9 {
			axis = r3.Vec{X: 1}
		}
		dir = r3.Rotate(parentDir, sp.Pitch, r3.Unit(axis))
	}
	yaw := sp.Yaw
	if sp.YawJitter != 0 {
		yaw += (rng.Float64()*2 - 1) * sp.YawJitter
	}
	if yaw != 0 {
		dir = r3.Rotate(dir, yaw, parentDir)
	}
	return plant.ChildSpec{
		Kind:    sp.Kind,
		Dir:     dir,
		Length:  sp.Length,
		Reserve: sp.Reserve,
	}
}

// Then is a rule's right-hand side.
type Then struct {
	Spawn       []SpawnSpec
	Prune       bool    // remove the node (and its subtree)
	ReserveCost float64 // reserve spent applying the production
}

// Rule is one production. Lower Priority values are considered first;
// within a kind, priorities form a total order (duplicates rejected at
// load), so the first match is well defined.
type Rule struct {
	Name     string
	Kind     plant.Kind
	Priority int
	ApexOnly bool // match only nodes with no living children
	When     When
	Then     Then
}

// Table is an immutable rule table, loaded once per run.
type Table struct {
	byKind [plant.NumKinds][]Rule
}

// NewTable builds and validates a table from a rule list.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{}
	for _, r := range rules {
		if int(r.Kind) >= plant.NumKinds {
			return nil, fmt.Errorf("rule %q: invalid kind", r.Name)
		}
		t.byKind[r.Kind] = append(t.byKind[r.Kind], r)
	}
	for k := range t.byKind {
		rs := t.byKind[k]
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Priority < rs[j].Priority })
		for i := 1; i < len(rs); i++ {
			if rs[i].Priority == rs[i-1].Priority {
				return nil, fmt.Errorf("rules %q and %q: duplicate priority %d for kind %s",
					rs[i-1].Name, rs[i].Name, rs[i].Priority, plant.Kind(k))
			}
		}
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validate() error {
	for _, rs := range t.byKind {
		for _, r := range rs {
			if r.Name == "" {
				return fmt.Errorf("rule without a name for kind %s", r.Kind)
			}
			if r.Then.Prune && len(r.Then.Spawn) > 0 {
				return fmt.Errorf("rule %q: prune and spawn are exclusive", r.Name)
			}
			if r.Then.ReserveCost < 0 || math.IsNaN(r.Then.ReserveCost) {
				return fmt.Errorf("rule %q: reserve_cost must be >= 0", r.Name)
			}
			for _, sp := range r.Then.Spawn {
				if sp.Length <= 0 {
					return fmt.Errorf("rule %q: spawn length must be > 0", r.Name)
				}
				if sp.Reserve < 0 {
					return fmt.Errorf("rule %q: spawn reserve must be >= 0", r.Name)
				}
				if int(sp.Kind) >= plant.NumKinds {
					return fmt.Errorf("rule %q: spawn has invalid kind", r.Name)
				}
			}
		}
	}
	return nil
}

// Match returns the highest-precedence rule matching the node, or false.
func (t *Table) Match(n *plant.Node, st systems.Stimulus) (*Rule, bool) {
	for i := range t.byKind[n.Kind] {
		r := &t.byKind[n.Kind][i]
		if r.ApexOnly && !n.Apex() {
			continue
		}
		if r.When.Matches(n, st) {
			return r, true
		}
	}
	return nil, false
}

// Len returns the total number of rules.
func (t *Table) Len() int {
	total := 0
	for _, rs := range t.byKind {
		total += len(rs)
	}
	return total
}
