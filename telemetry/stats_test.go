package telemetry

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
	"github.com/verdantlab/thicket/sim"
)

func TestReserveStats(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	mean, p10, p50, p90 := ReserveStats(values)

	if mean != 3 {
		t.Errorf("expected mean 3, got %v", mean)
	}
	if p10 != 1 {
		t.Errorf("expected p10 1, got %v", p10)
	}
	if p50 != 3 {
		t.Errorf("expected p50 3, got %v", p50)
	}
	if p90 != 5 {
		t.Errorf("expected p90 5, got %v", p90)
	}

	// Input must not be reordered.
	if values[0] != 5 || values[1] != 1 {
		t.Error("expected input slice untouched")
	}
}

func TestReserveStatsEmpty(t *testing.T) {
	mean, p10, p50, p90 := ReserveStats(nil)
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("expected zeros for empty input")
	}
}

func buildTelemetryGraph() *plant.Graph {
	g := plant.NewGraph()
	root := g.AddRoot(plant.KindSeed, r3.Vec{X: 1, Y: 1, Z: 1},
		plant.ChildSpec{Dir: r3.Vec{Y: 1}, Length: 1, Reserve: 4})
	stem, _ := g.AddChild(root, plant.ChildSpec{Kind: plant.KindMeristem, Length: 1, Reserve: 2})
	g.AddChild(stem, plant.ChildSpec{Kind: plant.KindLeaf, Length: 0.5, Reserve: 1})
	g.AddChild(stem, plant.ChildSpec{Kind: plant.KindLeaf, Length: 0.5, Reserve: 1})
	return g
}

func TestCollectorWindowBoundaries(t *testing.T) {
	c := NewCollector(10)
	g := buildTelemetryGraph()
	f := field.New(4, 4, 4, field.Cell{Material: field.Air, Sunlight: 0.5})

	c.RecordTick(sim.TickResult{Spawned: 2, Edits: 5})

	for tick := int32(1); tick < 10; tick++ {
		if ws := c.EndOfTick(tick, g, f); ws != nil {
			t.Fatalf("expected no stats mid-window at tick %d", tick)
		}
	}

	ws := c.EndOfTick(10, g, f)
	if ws == nil {
		t.Fatal("expected stats at the window boundary")
	}
	if ws.WindowEndTick != 10 {
		t.Errorf("expected window end 10, got %d", ws.WindowEndTick)
	}
	if ws.Spawned != 2 || ws.Edits != 5 {
		t.Errorf("expected window counters carried over, got %+v", ws)
	}
	if ws.Nodes != 4 || ws.Seeds != 1 || ws.Meristems != 1 || ws.Leaves != 2 {
		t.Errorf("unexpected kind counts: %+v", ws)
	}
	if ws.ReserveMean != 2 {
		t.Errorf("expected mean reserve 2, got %v", ws.ReserveMean)
	}
	if math.Abs(ws.SunlightMean-0.5) > 1e-12 {
		t.Errorf("expected mean sunlight 0.5, got %v", ws.SunlightMean)
	}
}

func TestCollectorResetsBetweenWindows(t *testing.T) {
	c := NewCollector(5)
	g := buildTelemetryGraph()
	f := field.New(2, 2, 2, field.Cell{})

	c.RecordTick(sim.TickResult{Spawned: 3})
	c.RecordFailure()
	first := c.EndOfTick(5, g, f)
	if first.Spawned != 3 || first.FailedTicks != 1 {
		t.Fatalf("expected first window to carry counters, got %+v", first)
	}

	second := c.EndOfTick(10, g, f)
	if second.Spawned != 0 || second.FailedTicks != 0 {
		t.Errorf("expected counters reset after emit, got %+v", second)
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("new output manager: %v", err)
	}

	if err := om.WriteStats(WindowStats{WindowEndTick: 10, Nodes: 3}); err != nil {
		t.Fatalf("write stats: %v", err)
	}
	if err := om.WriteStats(WindowStats{WindowEndTick: 20, Nodes: 5}); err != nil {
		t.Fatalf("write stats: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatalf("open stats.csv: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end") {
		t.Errorf("expected header row first, got %q", lines[0])
	}
	if strings.HasPrefix(lines[2], "window_end") {
		t.Error("expected the header written only once")
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("expected empty dir to disable output, got %v", err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}
	// Nil-safe methods.
	if err := om.WriteStats(WindowStats{}); err != nil {
		t.Errorf("write on nil: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("close on nil: %v", err)
	}
}
