package telemetry

import (
	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
	"github.com/verdantlab/thicket/sim"
)

// Collector accumulates tick results within windows and produces
// WindowStats. It is a consumer of the engine's read-only views: it
// copies the figures it needs and retains no references across ticks.
type Collector struct {
	windowTicks int32

	spawned     int
	pruned      int
	faults      int
	failedTicks int
	edits       int
}

// NewCollector creates a collector emitting stats every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: int32(windowTicks)}
}

// RecordTick folds one successful tick result into the current window.
func (c *Collector) RecordTick(res sim.TickResult) {
	c.spawned += res.Spawned
	c.pruned += res.Pruned
	c.faults += res.Faults
	c.edits += res.Edits
}

// RecordFailure counts a failed (rolled back) tick.
func (c *Collector) RecordFailure() {
	c.failedTicks++
}

// EndOfTick returns the window stats if the tick closes a window, else
// nil. The graph and field are the committed snapshots for the tick.
func (c *Collector) EndOfTick(tick int32, g *plant.Graph, f *field.Field) *WindowStats {
	if tick%c.windowTicks != 0 {
		return nil
	}

	ws := &WindowStats{
		WindowEndTick: tick,
		Nodes:         g.Len(),
		Spawned:       c.spawned,
		Pruned:        c.pruned,
		Faults:        c.faults,
		FailedTicks:   c.failedTicks,
		Edits:         c.edits,
	}

	var reserves []float64
	g.EachLive(func(n *plant.Node) {
		reserves = append(reserves, n.Reserve)
		switch n.Kind {
		case plant.KindSeed:
			ws.Seeds++
		case plant.KindStem:
			ws.Stems++
		case plant.KindBranch:
			ws.Branches++
		case plant.KindLeaf:
			ws.Leaves++
		case plant.KindMeristem:
			ws.Meristems++
		}
	})
	ws.ReserveMean, ws.ReserveP10, ws.ReserveP50, ws.ReserveP90 = ReserveStats(reserves)

	ws.MoistureTotal = f.Total(field.Moisture)
	ws.DensityTotal = f.Total(field.Density)
	cells := f.W * f.H * f.D
	if cells > 0 {
		ws.SunlightMean = f.Total(field.Sunlight) / float64(cells)
	}

	c.spawned, c.pruned, c.faults, c.failedTicks, c.edits = 0, 0, 0, 0, 0
	return ws
}
