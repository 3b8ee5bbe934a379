package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/plant"
)

func buildTestGraph(positions []r3.Vec) (*plant.Graph, []plant.NodeID) {
	g := plant.NewGraph()
	ids := make([]plant.NodeID, len(positions))
	for i, p := range positions {
		// AddRoot places the tip at base+dir*length; use a zero-ish length
		// offset so the tip lands exactly on the given position.
		ids[i] = g.AddRoot(plant.KindStem, r3.Vec{X: p.X, Y: p.Y - 0.001, Z: p.Z},
			plant.ChildSpec{Kind: plant.KindStem, Dir: r3.Vec{Y: 1}, Length: 0.001})
	}
	return g, ids
}

func TestQueryRadiusFindsNearbyNodes(t *testing.T) {
	g, ids := buildTestGraph([]r3.Vec{
		{X: 5, Y: 5, Z: 5},
		{X: 5.5, Y: 5, Z: 5},
		{X: 9, Y: 5, Z: 5},
	})
	grid := NewSpatialGrid(20, 20, 20, 1.0)
	grid.Rebuild(g)

	var scratch []Neighbor
	got := grid.QueryRadiusInto(scratch, r3.Vec{X: 5, Y: 5, Z: 5}, 1.0, ids[0], g)
	if len(got) != 1 {
		t.Fatalf("expected 1 neighbor within radius, got %d", len(got))
	}
	if got[0].ID != ids[1] {
		t.Errorf("expected neighbor %d, got %d", ids[1], got[0].ID)
	}
	if got[0].DistSq > 0.26 || got[0].DistSq < 0.24 {
		t.Errorf("expected squared distance near 0.25, got %v", got[0].DistSq)
	}
}

func TestQueryRadiusExcludesSelfAndDead(t *testing.T) {
	g, ids := buildTestGraph([]r3.Vec{
		{X: 5, Y: 5, Z: 5},
		{X: 5.2, Y: 5, Z: 5},
	})
	grid := NewSpatialGrid(20, 20, 20, 1.0)
	grid.Rebuild(g)

	var scratch []Neighbor
	got := grid.QueryRadiusInto(scratch, r3.Vec{X: 5, Y: 5, Z: 5}, 1.0, ids[0], g)
	if len(got) != 1 {
		t.Fatalf("expected self excluded, got %d neighbors", len(got))
	}

	// A node removed after the grid was built must not be reported.
	if _, err := g.Remove(ids[1]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got = grid.QueryRadiusInto(scratch[:0], r3.Vec{X: 5, Y: 5, Z: 5}, 1.0, ids[0], g)
	if len(got) != 0 {
		t.Errorf("expected dead node filtered out, got %d neighbors", len(got))
	}
}

func TestQueryRadiusClampsOutOfVolume(t *testing.T) {
	g, ids := buildTestGraph([]r3.Vec{
		{X: 0.1, Y: 0.1, Z: 0.1},
	})
	grid := NewSpatialGrid(10, 10, 10, 1.0)
	grid.Rebuild(g)

	// Querying from outside the volume still reaches the boundary cells.
	var scratch []Neighbor
	got := grid.QueryRadiusInto(scratch, r3.Vec{X: -0.5, Y: 0, Z: 0}, 2.0, plant.NoParent, g)
	if len(got) != 1 {
		t.Errorf("expected boundary node found from clamped query, got %d", len(got))
	}
	_ = ids
}

func TestQueryRadiusCapsResults(t *testing.T) {
	positions := make([]r3.Vec, MaxQueryResults+40)
	for i := range positions {
		positions[i] = r3.Vec{X: 5 + float64(i%7)*0.01, Y: 5, Z: 5 + float64(i/7)*0.01}
	}
	g, _ := buildTestGraph(positions)
	grid := NewSpatialGrid(20, 20, 20, 1.0)
	grid.Rebuild(g)

	var scratch []Neighbor
	got := grid.QueryRadiusInto(scratch, r3.Vec{X: 5, Y: 5, Z: 5}, 3.0, plant.NoParent, g)
	if len(got) != MaxQueryResults {
		t.Errorf("expected result cap %d, got %d", MaxQueryResults, len(got))
	}
}

func TestRebuildClearsPreviousTick(t *testing.T) {
	g, ids := buildTestGraph([]r3.Vec{{X: 5, Y: 5, Z: 5}})
	grid := NewSpatialGrid(20, 20, 20, 1.0)
	grid.Rebuild(g)
	grid.Rebuild(g)

	var scratch []Neighbor
	got := grid.QueryRadiusInto(scratch, r3.Vec{X: 5, Y: 5, Z: 5}, 1.0, plant.NoParent, g)
	if len(got) != 1 {
		t.Errorf("expected one entry after double rebuild, got %d", len(got))
	}
	_ = ids
}
