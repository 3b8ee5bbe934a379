package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/config"
	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

func init() {
	config.MustInit("")
}

func testField() *field.Field {
	amb := field.Cell{Material: field.Air, Sunlight: 1.0, Temperature: 18}
	f := field.New(16, 16, 16, amb)
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			for y := 0; y < 4; y++ {
				f.Set(field.Key{X: x, Y: y, Z: z}, field.Cell{Material: field.Soil, Moisture: 0.5, Temperature: 18})
			}
		}
	}
	// A zero-parameter relax pass recomputes the sunlight columns.
	return f.Relax(field.RelaxParams{})
}

func testSensor() *Sensor {
	return &Sensor{
		Grid:           NewSpatialGrid(16, 16, 16, 1.0),
		light:          NewLightSampler(3, 0.4, 0.5, 4, 0.3, 1.0),
		cellSize:       1.0,
		moistureRadius: 1,
		crowdRadius:    2.0,
	}
}

func TestSenseReadsCellTemperature(t *testing.T) {
	f := testField()
	g := plant.NewGraph()
	id := g.AddRoot(plant.KindSeed, r3.Vec{X: 8, Y: 3.5, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})

	s := testSensor()
	s.Rebuild(g)

	n, _ := g.Node(id)
	st := s.Sense(g, f, &n, nil)
	if st.Temperature != 18 {
		t.Errorf("expected cell temperature 18, got %v", st.Temperature)
	}
}

func TestSenseMoistureAveragesAroundBase(t *testing.T) {
	f := testField()
	g := plant.NewGraph()
	// Base inside the soil layer, well away from field edges.
	id := g.AddRoot(plant.KindSeed, r3.Vec{X: 8.5, Y: 2.5, Z: 8.5},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})

	s := testSensor()
	s.Rebuild(g)

	n, _ := g.Node(id)
	st := s.Sense(g, f, &n, nil)

	// The 3x3x3 neighborhood around (8,2,8) is entirely soil at 0.5.
	if math.Abs(st.Moisture-0.5) > 1e-12 {
		t.Errorf("expected full-soil average 0.5, got %v", st.Moisture)
	}
}

func TestSenseMoistureDilutedByAir(t *testing.T) {
	f := testField()
	g := plant.NewGraph()
	// Base at the surface: the neighborhood spans the top soil layer and
	// the air above it, so dry cells pull the average down.
	id := g.AddRoot(plant.KindSeed, r3.Vec{X: 8.5, Y: 3.5, Z: 8.5},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})

	s := testSensor()
	s.Rebuild(g)

	n, _ := g.Node(id)
	st := s.Sense(g, f, &n, nil)
	if st.Moisture >= 0.5 || st.Moisture <= 0 {
		t.Errorf("expected diluted moisture in (0, 0.5), got %v", st.Moisture)
	}
}

func TestSenseCrowdingWeightsByDistance(t *testing.T) {
	f := testField()
	g := plant.NewGraph()
	id := g.AddRoot(plant.KindMeristem, r3.Vec{X: 8, Y: 7, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})
	// One neighbor at distance 1 (weight 0.5), one far outside the radius.
	g.AddRoot(plant.KindMeristem, r3.Vec{X: 9, Y: 7, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})
	g.AddRoot(plant.KindMeristem, r3.Vec{X: 14, Y: 7, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})

	s := testSensor()
	s.Rebuild(g)

	n, _ := g.Node(id)
	st := s.Sense(g, f, &n, nil)
	if math.Abs(st.Crowding-0.5) > 1e-9 {
		t.Errorf("expected crowding 0.5 from one neighbor at half radius, got %v", st.Crowding)
	}

	alone := plant.NewGraph()
	aid := alone.AddRoot(plant.KindMeristem, r3.Vec{X: 8, Y: 7, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})
	s.Rebuild(alone)
	an, _ := alone.Node(aid)
	if st := s.Sense(alone, f, &an, nil); st.Crowding != 0 {
		t.Errorf("expected zero crowding for a lone node, got %v", st.Crowding)
	}
}

func TestLightOcclusionMonotonic(t *testing.T) {
	f := testField()
	g := plant.NewGraph()
	id := g.AddRoot(plant.KindLeaf, r3.Vec{X: 8, Y: 7, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})

	s := testSensor()
	s.Rebuild(g)
	n, _ := g.Node(id)
	clear := s.Sense(g, f, &n, nil).Light

	// Add an occluder directly on the upward sample path.
	g.AddRoot(plant.KindLeaf, r3.Vec{X: 8, Y: 8, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})
	s.Rebuild(g)
	n, _ = g.Node(id)
	shaded := s.Sense(g, f, &n, nil).Light

	if clear <= 0 {
		t.Fatalf("expected positive light in the open, got %v", clear)
	}
	if shaded >= clear {
		t.Errorf("expected occluder to reduce light, clear=%v shaded=%v", clear, shaded)
	}
}

func TestLightIgnoresOccludersBelowTip(t *testing.T) {
	g := plant.NewGraph()
	id := g.AddRoot(plant.KindLeaf, r3.Vec{X: 8, Y: 7, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})
	g.AddRoot(plant.KindLeaf, r3.Vec{X: 8, Y: 6.9, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1}) // tip y=7.9, below the sensing tip
	above := g.AddRoot(plant.KindLeaf, r3.Vec{X: 8, Y: 7.3, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1}) // tip y=8.3

	grid := NewSpatialGrid(16, 16, 16, 1.0)
	grid.Rebuild(g)
	ls := NewLightSampler(3, 0.4, 0.5, 4, 0.3, 1.0)

	// Both neighbors sit within the query radius of the sample point, but
	// only the one above the sensing tip at y=8 may occlude.
	p := r3.Vec{X: 8, Y: 8.1, Z: 8}
	got := ls.occludersAt(nil, p, grid, g, id, 8.0)
	if len(got) != 1 {
		t.Fatalf("expected 1 occluder above the tip, got %d", len(got))
	}
	if got[0].ID != above {
		t.Errorf("expected the higher neighbor %d, got %d", above, got[0].ID)
	}
}

func TestLightZeroInDarkCell(t *testing.T) {
	f := testField()
	g := plant.NewGraph()
	// A node buried in soil sits in a cell with zero sunlight.
	id := g.AddRoot(plant.KindSeed, r3.Vec{X: 8, Y: 0.5, Z: 8},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1})

	s := testSensor()
	s.Rebuild(g)
	n, _ := g.Node(id)
	if got := s.Sense(g, f, &n, nil).Light; got != 0 {
		t.Errorf("expected no light underground, got %v", got)
	}
}

func TestNewSensorFromConfig(t *testing.T) {
	s := NewSensor(config.Cfg())
	if s.Grid == nil || s.light == nil {
		t.Fatal("expected sensor wired from config")
	}
	if len(s.light.dirs) != config.Cfg().Sense.LightSamples {
		t.Errorf("expected %d sample directions, got %d",
			config.Cfg().Sense.LightSamples, len(s.light.dirs))
	}
}

func TestCellKeyFloorsNegative(t *testing.T) {
	k := CellKey(r3.Vec{X: -0.5, Y: 1.5, Z: 2.0}, 1.0)
	if k != (field.Key{X: -1, Y: 1, Z: 2}) {
		t.Errorf("expected floor division, got %+v", k)
	}
}
