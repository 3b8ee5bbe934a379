package field

import (
	"math"
	"testing"
)

func testAmbient() Cell {
	return Cell{Material: Air, Sunlight: 1.0, Moisture: 0.3, Temperature: 18}
}

func TestApplyClampsOnce(t *testing.T) {
	f := New(4, 4, 4, testAmbient())
	k := Key{1, 1, 1}

	if err := f.Apply(k, Moisture, 5.0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.At(k).Moisture; got != 1.0 {
		t.Errorf("expected moisture clamped to 1.0, got %v", got)
	}
	if err := f.Apply(k, Moisture, -9.0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.At(k).Moisture; got != 0.0 {
		t.Errorf("expected moisture clamped to 0.0, got %v", got)
	}

	if err := f.Apply(k, Temperature, 1000); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.At(k).Temperature; got != 60 {
		t.Errorf("expected temperature clamped to 60, got %v", got)
	}
}

func TestApplyRejectsNonFinite(t *testing.T) {
	f := New(2, 2, 2, testAmbient())
	if err := f.Apply(Key{0, 0, 0}, Moisture, math.NaN()); err == nil {
		t.Error("expected error for NaN delta")
	}
	if err := f.Apply(Key{0, 0, 0}, Sunlight, math.Inf(-1)); err == nil {
		t.Error("expected error for infinite delta")
	}
}

func TestOutOfBoundsReadsAmbient(t *testing.T) {
	amb := testAmbient()
	f := New(3, 3, 3, amb)
	got := f.At(Key{-1, 0, 0})
	if got != amb {
		t.Errorf("expected ambient for OOB read, got %+v", got)
	}
	got = f.At(Key{0, 3, 0})
	if got != amb {
		t.Errorf("expected ambient for OOB read, got %+v", got)
	}
}

func TestOutOfBoundsWritesDropped(t *testing.T) {
	f := New(3, 3, 3, testAmbient())
	before := f.Total(Moisture)
	if err := f.Apply(Key{99, 0, 0}, Moisture, 0.5); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if after := f.Total(Moisture); after != before {
		t.Errorf("expected OOB write dropped, total %v -> %v", before, after)
	}
}

func TestCloneIsolation(t *testing.T) {
	f := New(3, 3, 3, testAmbient())
	c := f.Clone()
	c.Apply(Key{1, 1, 1}, Density, 0.7)
	if f.At(Key{1, 1, 1}).Density != 0 {
		t.Error("expected clone writes to not reach the original")
	}
}

func TestRelaxMoistureConservedBetweenSoilCells(t *testing.T) {
	f := New(3, 1, 1, Cell{Material: Air, Sunlight: 1.0})
	f.Set(Key{0, 0, 0}, Cell{Material: Soil, Moisture: 0.8})
	f.Set(Key{1, 0, 0}, Cell{Material: Soil, Moisture: 0.2})
	f.Set(Key{2, 0, 0}, Cell{Material: Stone})

	next := f.Relax(RelaxParams{MoistureDiffusion: 0.1})

	a := next.At(Key{0, 0, 0}).Moisture
	b := next.At(Key{1, 0, 0}).Moisture
	if a >= 0.8 || b <= 0.2 {
		t.Errorf("expected diffusion towards the drier cell, got %v, %v", a, b)
	}
	if math.Abs((a+b)-1.0) > 1e-12 {
		t.Errorf("expected moisture conserved without evaporation, sum=%v", a+b)
	}
	if next.At(Key{2, 0, 0}).Moisture != 0 {
		t.Error("expected stone to stay dry")
	}
}

func TestRelaxEvaporatesExposedSoil(t *testing.T) {
	// Soil with air above loses moisture; buried soil does not.
	f := New(1, 3, 1, Cell{Material: Air, Sunlight: 1.0})
	f.Set(Key{0, 0, 0}, Cell{Material: Soil, Moisture: 0.5})
	f.Set(Key{0, 1, 0}, Cell{Material: Soil, Moisture: 0.5})

	next := f.Relax(RelaxParams{Evaporation: 0.1})
	if got := next.At(Key{0, 1, 0}).Moisture; got >= 0.5 {
		t.Errorf("expected exposed soil to evaporate, got %v", got)
	}
	buried := next.At(Key{0, 0, 0}).Moisture
	if buried != 0.5 {
		t.Errorf("expected buried soil unchanged, got %v", buried)
	}
}

func TestRelaxTemperatureApproachesAmbient(t *testing.T) {
	amb := Cell{Material: Air, Temperature: 20}
	f := New(1, 1, 1, amb)
	f.Set(Key{0, 0, 0}, Cell{Material: Air, Temperature: 0})

	next := f.Relax(RelaxParams{TemperatureRelax: 0.25})
	if got := next.At(Key{0, 0, 0}).Temperature; got != 5 {
		t.Errorf("expected temperature pulled 25%% toward ambient, got %v", got)
	}
}

func TestRelightOcclusion(t *testing.T) {
	f := New(1, 3, 1, Cell{Material: Air, Sunlight: 1.0})
	f.Set(Key{0, 2, 0}, Cell{Material: Air})
	f.Set(Key{0, 1, 0}, Cell{Material: Water})
	f.Set(Key{0, 0, 0}, Cell{Material: Air})

	next := f.Relax(RelaxParams{})
	top := next.At(Key{0, 2, 0}).Sunlight
	bottom := next.At(Key{0, 0, 0}).Sunlight
	if top != 1.0 {
		t.Errorf("expected full light at top, got %v", top)
	}
	if math.Abs(bottom-0.65) > 1e-12 {
		t.Errorf("expected water to absorb 35%% of light, got %v", bottom)
	}
}

func TestRelightDensityAbsorption(t *testing.T) {
	f := New(1, 2, 1, Cell{Material: Air, Sunlight: 1.0})
	f.Set(Key{0, 1, 0}, Cell{Material: Air, Density: 0.5})
	f.Set(Key{0, 0, 0}, Cell{Material: Air})

	next := f.Relax(RelaxParams{DensityAbsorption: 0.8})
	if got := next.At(Key{0, 0, 0}).Sunlight; math.Abs(got-0.6) > 1e-12 {
		t.Errorf("expected density to attenuate light to 0.6, got %v", got)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	amb := testAmbient()
	p := GenParams{
		SurfaceY:       4,
		StoneDepth:     2,
		MoistureScale:  0.2,
		MoistureBase:   0.3,
		MoistureSpread: 0.4,
	}
	a := Generate(8, 8, 8, 7, amb, p)
	b := Generate(8, 8, 8, 7, amb, p)
	for z := 0; z < 8; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				k := Key{x, y, z}
				if a.At(k) != b.At(k) {
					t.Fatalf("same seed produced different cells at %v", k)
				}
			}
		}
	}

	c := Generate(8, 8, 8, 8, amb, p)
	if a.Total(Moisture) == c.Total(Moisture) {
		t.Error("expected different seeds to produce different moisture")
	}
}

func TestGenerateStratification(t *testing.T) {
	amb := testAmbient()
	f := Generate(4, 8, 4, 1, amb, GenParams{SurfaceY: 4, StoneDepth: 2, MoistureBase: 0.5})
	if got := f.At(Key{1, 0, 1}).Material; got != Stone {
		t.Errorf("expected stone at the bottom, got %v", got)
	}
	if got := f.At(Key{1, 3, 1}).Material; got != Soil {
		t.Errorf("expected soil below the surface, got %v", got)
	}
	if got := f.At(Key{1, 4, 1}).Material; got != Air {
		t.Errorf("expected air at the surface, got %v", got)
	}
	if got := f.At(Key{1, 7, 1}).Sunlight; got != 1.0 {
		t.Errorf("expected full light at the top layer, got %v", got)
	}
	if got := f.At(Key{1, 2, 1}).Sunlight; got != 0 {
		t.Errorf("expected no light below soil, got %v", got)
	}
}
