package systems

import (
	"math"

	"github.com/verdantlab/thicket/config"
	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

// Stimulus is a node's locally sensed summary of environment and neighbor
// state, computed once per tick from the frozen snapshots.
type Stimulus struct {
	Light       float64 // [0,1] after occlusion
	Moisture    float64 // [0,1] available around the node's base
	Temperature float64 // degrees C at the node's cell
	Crowding    float64 // weighted neighbor count
}

// Sensor computes stimuli. It holds the spatial index and light sampler;
// both are rebuilt/read-only per tick, so Sense is safe to call from many
// workers concurrently as long as each worker passes its own scratch.
type Sensor struct {
	Grid  *SpatialGrid
	light *LightSampler

	cellSize       float64
	moistureRadius int
	crowdRadius    float64
}

// NewSensor builds a sensor for the configured world.
func NewSensor(cfg *config.Config) *Sensor {
	w := float64(cfg.World.Width) * cfg.World.CellSize
	h := float64(cfg.World.Height) * cfg.World.CellSize
	d := float64(cfg.World.Depth) * cfg.World.CellSize
	return &Sensor{
		Grid: NewSpatialGrid(w, h, d, math.Max(cfg.World.CellSize, cfg.Sense.CrowdingRadius/2)),
		light: NewLightSampler(
			cfg.Sense.LightSamples,
			cfg.Derived.LightSpreadRad,
			cfg.Sense.LightStep,
			cfg.Sense.LightSteps,
			cfg.Sense.OcclusionPerHit,
			cfg.World.CellSize,
		),
		cellSize:       cfg.World.CellSize,
		moistureRadius: cfg.Sense.MoistureRadius,
		crowdRadius:    cfg.Sense.CrowdingRadius,
	}
}

// Rebuild refreshes the spatial index from the committed graph.
// Call once per tick before fanning out Sense.
func (s *Sensor) Rebuild(g *plant.Graph) {
	s.Grid.Rebuild(g)
}

// Sense computes the stimulus for one node against the tick-start
// snapshots. It reads shared state but never writes it; scratch is the
// calling worker's own buffer.
func (s *Sensor) Sense(g *plant.Graph, f *field.Field, n *plant.Node, scratch []Neighbor) Stimulus {
	cell := f.At(CellKey(n.Pos, s.cellSize))

	st := Stimulus{
		Light:       s.light.Light(f, s.Grid, g, n, scratch),
		Moisture:    s.moistureAround(f, n),
		Temperature: cell.Temperature,
	}

	scratch = scratch[:0]
	scratch = s.Grid.QueryRadiusInto(scratch, n.Pos, s.crowdRadius, n.ID, g)
	for _, nb := range scratch {
		d := math.Sqrt(nb.DistSq)
		st.Crowding += 1 - d/s.crowdRadius
	}

	return st
}

// moistureAround averages moisture over the moisture-holding cells within
// the sensing radius of the node's base. Cells that hold no moisture
// (air, stone) contribute zero availability but still count toward the
// average, so nodes far from soil sense dry conditions.
func (s *Sensor) moistureAround(f *field.Field, n *plant.Node) float64 {
	base := CellKey(n.Base(), s.cellSize)
	r := s.moistureRadius
	var sum float64
	var count int
	for dz := -r; dz <= r; dz++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				c := f.At(field.Key{X: base.X + dx, Y: base.Y + dy, Z: base.Z + dz})
				if c.Material.HoldsMoisture() {
					sum += c.Moisture
				}
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
