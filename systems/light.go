package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

// LightSampler estimates the light a node receives: the field's sunlight
// value at the node's cell, attenuated by nodes found along a fixed small
// set of upward cone samples. The sample directions are fixed at
// construction, so the estimate is a pure function of the snapshots.
type LightSampler struct {
	dirs        []r3.Vec
	stepLen     float64
	steps       int
	perHit      float64
	queryRadius float64
	cellSize    float64
}

// NewLightSampler builds a sampler with `samples` directions spread within
// `spread` radians of straight up, marching `steps` points of `stepLen`
// world units along each. Each occluding node hit scales light by
// (1 - perHit).
func NewLightSampler(samples int, spread, stepLen float64, steps int, perHit, cellSize float64) *LightSampler {
	up := r3.Vec{Y: 1}
	dirs := make([]r3.Vec, 0, samples)
	dirs = append(dirs, up)
	for i := 1; i < samples; i++ {
		// ring of directions tilted by the cone angle
		tilted := r3.Rotate(up, spread, r3.Vec{X: 1})
		azimuth := 2 * math.Pi * float64(i-1) / float64(samples-1)
		dirs = append(dirs, r3.Rotate(tilted, azimuth, up))
	}
	return &LightSampler{
		dirs:        dirs,
		stepLen:     stepLen,
		steps:       steps,
		perHit:      perHit,
		queryRadius: stepLen * 0.6,
		cellSize:    cellSize,
	}
}

// Light returns the estimated light at the node in [0,1].
func (ls *LightSampler) Light(f *field.Field, grid *SpatialGrid, graph *plant.Graph, n *plant.Node, scratch []Neighbor) float64 {
	base := f.At(CellKey(n.Pos, ls.cellSize)).Sunlight
	if base <= 0 {
		return 0
	}

	factor := 1.0
	for _, dir := range ls.dirs {
		hits := 0
		for s := 1; s <= ls.steps; s++ {
			p := r3.Add(n.Pos, r3.Scale(float64(s)*ls.stepLen, dir))
			scratch = scratch[:0]
			scratch = ls.occludersAt(scratch, p, grid, graph, n.ID, n.Pos.Y)
			hits += len(scratch)
		}
		if hits > 0 {
			factor *= math.Pow(1-ls.perHit, float64(hits))
		}
	}

	return base * factor
}

// occludersAt collects nodes near a sample point, excluding the sensing
// node itself. Only nodes strictly above the sensing node's tip occlude:
// light arrives from above, so a neighbor level with or under the tip
// cannot shade it even when it falls inside the query radius.
func (ls *LightSampler) occludersAt(dst []Neighbor, p r3.Vec, grid *SpatialGrid, graph *plant.Graph, self plant.NodeID, tipY float64) []Neighbor {
	dst = grid.QueryRadiusInto(dst, p, ls.queryRadius, self, graph)
	kept := dst[:0]
	for _, nb := range dst {
		if p.Y+nb.DY > tipY {
			kept = append(kept, nb)
		}
	}
	return kept
}

// CellKey maps a world position to the field cell containing it.
func CellKey(pos r3.Vec, cellSize float64) field.Key {
	return field.Key{
		X: int(math.Floor(pos.X / cellSize)),
		Y: int(math.Floor(pos.Y / cellSize)),
		Z: int(math.Floor(pos.Z / cellSize)),
	}
}
