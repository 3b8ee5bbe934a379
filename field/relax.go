package field

// RelaxParams tunes the trailing environment-only update of a tick.
type RelaxParams struct {
	// MoistureDiffusion is the per-tick exchange rate between adjacent
	// moisture-holding cells, per face. Values above 1/6 overshoot.
	MoistureDiffusion float64
	// Evaporation is the per-tick moisture fraction lost by soil cells
	// exposed to air above.
	Evaporation float64
	// TemperatureRelax is the per-tick pull of every cell's temperature
	// toward the ambient value.
	TemperatureRelax float64
	// DensityAbsorption scales how strongly plant density in a cell
	// attenuates sunlight passing through it.
	DensityAbsorption float64
}

var faceOffsets = [6]Key{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

// Relax produces the next field state: moisture diffuses between adjacent
// moisture-holding cells and evaporates at the soil surface, temperature
// relaxes toward ambient, and sunlight is recomputed top-down through
// material opacity and plant density. The receiver is read-only; the
// result is a fresh buffer, which is what makes the tick's double-buffer
// swap (and rollback) trivial.
func (f *Field) Relax(p RelaxParams) *Field {
	next := f.Clone()

	for z := 0; z < f.D; z++ {
		for y := 0; y < f.H; y++ {
			for x := 0; x < f.W; x++ {
				k := Key{x, y, z}
				src := f.At(k)
				dst := &next.cells[next.index(x, y, z)]

				if src.Material.HoldsMoisture() {
					m := src.Moisture
					for _, off := range faceOffsets {
						nk := Key{x + off.X, y + off.Y, z + off.Z}
						if !f.InBounds(nk) {
							continue
						}
						nb := f.At(nk)
						if !nb.Material.HoldsMoisture() {
							continue
						}
						m += p.MoistureDiffusion * (nb.Moisture - src.Moisture)
					}
					if src.Material == Soil {
						above := f.At(Key{x, y + 1, z})
						if above.Material == Air {
							m -= p.Evaporation * m
						}
					}
					dst.Moisture = clampScalar(Moisture, m)
				}

				t := src.Temperature + p.TemperatureRelax*(f.ambient.Temperature-src.Temperature)
				dst.Temperature = clampScalar(Temperature, t)
			}
		}
	}

	next.relightColumns(p.DensityAbsorption)
	return next
}

// relightColumns recomputes sunlight by sweeping every column from the top
// layer down, attenuating through material opacity and plant density.
func (f *Field) relightColumns(absorb float64) {
	for z := 0; z < f.D; z++ {
		for x := 0; x < f.W; x++ {
			light := f.ambient.Sunlight
			for y := f.H - 1; y >= 0; y-- {
				c := &f.cells[f.index(x, y, z)]
				c.Sunlight = clampScalar(Sunlight, light)
				light *= 1 - c.Material.Opacity()
				light *= 1 - absorb*c.Density
				if light < 0 {
					light = 0
				}
			}
		}
	}
}

func clampScalar(s Scalar, v float64) float64 {
	lo, hi := s.Range()
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
