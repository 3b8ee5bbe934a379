// Package field models the microclimate as a dense 3D grid of cells
// carrying sunlight, moisture, temperature, and plant density.
// Y is up; sunlight enters from the top layer.
package field

import (
	"fmt"
	"math"
)

// Material classifies what a cell is made of.
type Material uint8

const (
	Air Material = iota
	Water
	Stone
	Soil
)

var materialNames = [...]string{"air", "water", "stone", "soil"}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return fmt.Sprintf("material(%d)", uint8(m))
}

// Opacity returns the fraction of light a cell's material absorbs.
func (m Material) Opacity() float64 {
	switch m {
	case Water:
		return 0.35
	case Stone, Soil:
		return 1.0
	default:
		return 0.0
	}
}

// HoldsMoisture reports whether the material participates in the
// moisture budget (diffusion, uptake, evaporation).
func (m Material) HoldsMoisture() bool {
	return m == Soil || m == Water
}

// Scalar selects one of a cell's mutable fields.
type Scalar uint8

const (
	Sunlight Scalar = iota
	Moisture
	Temperature
	Density
)

var scalarNames = [...]string{"sunlight", "moisture", "temperature", "density"}

func (s Scalar) String() string {
	if int(s) < len(scalarNames) {
		return scalarNames[s]
	}
	return fmt.Sprintf("scalar(%d)", uint8(s))
}

// Range returns the valid closed interval for a scalar.
// Accumulated deltas are clamped to it exactly once per commit.
func (s Scalar) Range() (lo, hi float64) {
	switch s {
	case Temperature:
		return -40, 60
	default:
		return 0, 1
	}
}

// Key addresses a cell by integer grid coordinates.
type Key struct {
	X, Y, Z int
}

// Cell holds one grid cell's state. Material is fixed after generation;
// the scalars mutate each tick through commits and relaxation.
type Cell struct {
	Material    Material
	Sunlight    float64
	Moisture    float64
	Temperature float64
	Density     float64
}

// Scalar returns the selected scalar value.
func (c Cell) Scalar(s Scalar) float64 {
	switch s {
	case Sunlight:
		return c.Sunlight
	case Moisture:
		return c.Moisture
	case Temperature:
		return c.Temperature
	default:
		return c.Density
	}
}

func (c *Cell) setScalar(s Scalar, v float64) {
	switch s {
	case Sunlight:
		c.Sunlight = v
	case Moisture:
		c.Moisture = v
	case Temperature:
		c.Temperature = v
	default:
		c.Density = v
	}
}

// Field is a fixed-extent grid. Cells are created once and never destroyed;
// reads outside the extent return the ambient boundary cell. Committed
// fields are treated as read-only snapshots; mutation happens on clones.
type Field struct {
	W, H, D int
	cells   []Cell
	ambient Cell
}

// New creates a field of the given extent with every cell set to ambient.
func New(w, h, d int, ambient Cell) *Field {
	f := &Field{
		W: w, H: h, D: d,
		cells:   make([]Cell, w*h*d),
		ambient: ambient,
	}
	for i := range f.cells {
		f.cells[i] = ambient
	}
	return f
}

// index is z-major, then y, then x.
func (f *Field) index(x, y, z int) int {
	return f.H*f.W*z + f.W*y + x
}

// InBounds reports whether the key addresses a real cell.
func (f *Field) InBounds(k Key) bool {
	return k.X >= 0 && k.X < f.W && k.Y >= 0 && k.Y < f.H && k.Z >= 0 && k.Z < f.D
}

// At returns the cell at the key, or the ambient boundary cell when the
// key is out of bounds. Out-of-bounds reads are always defined.
func (f *Field) At(k Key) Cell {
	if !f.InBounds(k) {
		return f.ambient
	}
	return f.cells[f.index(k.X, k.Y, k.Z)]
}

// Ambient returns the boundary cell used for out-of-bounds reads.
func (f *Field) Ambient() Cell { return f.ambient }

// Set overwrites a cell. Used during generation and by tests; the
// simulation itself mutates only through Apply and Relax.
func (f *Field) Set(k Key, c Cell) {
	if !f.InBounds(k) {
		return
	}
	f.cells[f.index(k.X, k.Y, k.Z)] = c
}

// Apply adds delta to one scalar of one cell and clamps the result to the
// scalar's valid range. Deltas addressed outside the extent are dropped:
// the boundary is ambient, not simulated. An accumulation that has gone
// non-finite is reported as an error so the commit can fail the tick.
func (f *Field) Apply(k Key, s Scalar, delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("apply %s at %v: non-finite delta %v", s, k, delta)
	}
	if !f.InBounds(k) {
		return nil
	}
	c := &f.cells[f.index(k.X, k.Y, k.Z)]
	lo, hi := s.Range()
	v := c.Scalar(s) + delta
	if v < lo {
		v = lo
	} else if v > hi {
		v = hi
	}
	c.setScalar(s, v)
	return nil
}

// Clone returns a deep copy sharing no state with the receiver.
func (f *Field) Clone() *Field {
	c := &Field{W: f.W, H: f.H, D: f.D, ambient: f.ambient}
	c.cells = make([]Cell, len(f.cells))
	copy(c.cells, f.cells)
	return c
}

// Total sums one scalar over all cells. Telemetry uses this for
// conservation tracking.
func (f *Field) Total(s Scalar) float64 {
	var sum float64
	for i := range f.cells {
		sum += f.cells[i].Scalar(s)
	}
	return sum
}
