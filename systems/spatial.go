// Package systems provides read-only sensing support for the simulation:
// spatial indexing over plant nodes, light occlusion sampling, and the
// stimulus computation itself.
package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/plant"
)

// Neighbor holds a nearby node with precomputed spatial data.
// This avoids recomputing delta and distance in the stimulus hot path.
type Neighbor struct {
	ID         plant.NodeID
	DX, DY, DZ float64 // delta from query origin
	DistSq     float64 // squared distance (avoid sqrt in hot path)
}

// SpatialGrid provides O(1) neighbor lookups using a cell-based grid over
// the bounded simulation volume. It is rebuilt from the committed graph at
// the start of every tick and is read-only while workers run.
type SpatialGrid struct {
	cellSize float64
	cols     int // x
	rows     int // y
	layers   int // z
	cells    [][]plant.NodeID
}

// NewSpatialGrid creates a grid covering a volume of w*h*d world units.
func NewSpatialGrid(w, h, d float64, cellSize float64) *SpatialGrid {
	cols := int(w/cellSize) + 1
	rows := int(h/cellSize) + 1
	layers := int(d/cellSize) + 1

	cells := make([][]plant.NodeID, cols*rows*layers)
	for i := range cells {
		cells[i] = make([]plant.NodeID, 0, 4)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		layers:   layers,
		cells:    cells,
	}
}

// Clear removes all nodes from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds a node at the given position. Positions outside the volume
// are clamped into the boundary cells.
func (g *SpatialGrid) Insert(id plant.NodeID, pos r3.Vec) {
	g.cells[g.cellIndex(pos)] = append(g.cells[g.cellIndex(pos)], id)
}

func (g *SpatialGrid) cellIndex(pos r3.Vec) int {
	cx := clampInt(int(pos.X/g.cellSize), 0, g.cols-1)
	cy := clampInt(int(pos.Y/g.cellSize), 0, g.rows-1)
	cz := clampInt(int(pos.Z/g.cellSize), 0, g.layers-1)
	return (cz*g.rows+cy)*g.cols + cx
}

// MaxQueryResults caps the number of neighbors returned by spatial queries.
// This prevents density spikes from causing unbounded work.
const MaxQueryResults = 128

// QueryRadiusInto finds living nodes within radius of pos and appends them
// to dst (up to MaxQueryResults). Returns the updated slice. Reuse dst
// across calls to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, pos r3.Vec, radius float64, exclude plant.NodeID, graph *plant.Graph) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1

	cx := clampInt(int(pos.X/g.cellSize), 0, g.cols-1)
	cy := clampInt(int(pos.Y/g.cellSize), 0, g.rows-1)
	cz := clampInt(int(pos.Z/g.cellSize), 0, g.layers-1)

	radiusSq := radius * radius

	for dz := -cellRadius; dz <= cellRadius; dz++ {
		z := cz + dz
		if z < 0 || z >= g.layers {
			continue
		}
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			y := cy + dy
			if y < 0 || y >= g.rows {
				continue
			}
			for dx := -cellRadius; dx <= cellRadius; dx++ {
				x := cx + dx
				if x < 0 || x >= g.cols {
					continue
				}
				idx := (z*g.rows+y)*g.cols + x
				for _, id := range g.cells[idx] {
					if id == exclude {
						continue
					}
					n, ok := graph.Node(id)
					if !ok {
						continue
					}
					ddx := n.Pos.X - pos.X
					ddy := n.Pos.Y - pos.Y
					ddz := n.Pos.Z - pos.Z
					distSq := ddx*ddx + ddy*ddy + ddz*ddz
					if distSq <= radiusSq {
						dst = append(dst, Neighbor{ID: id, DX: ddx, DY: ddy, DZ: ddz, DistSq: distSq})
						if len(dst) >= MaxQueryResults {
							return dst
						}
					}
				}
			}
		}
	}

	return dst
}

// Rebuild refills the grid from the living nodes of a committed graph.
func (g *SpatialGrid) Rebuild(graph *plant.Graph) {
	g.Clear()
	graph.EachLive(func(n *plant.Node) {
		g.Insert(n.ID, n.Pos)
	})
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
