package field

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenParams controls initial field generation.
type GenParams struct {
	// SurfaceY is the y coordinate of the first air layer; everything
	// below is soil over stone.
	SurfaceY int
	// StoneDepth is how many layers below the surface remain soil before
	// stone begins.
	StoneDepth int
	// MoistureScale is the noise frequency for initial soil moisture;
	// larger values give smaller moisture patches.
	MoistureScale float64
	// MoistureBase and MoistureSpread map noise [0,1] into
	// [Base, Base+Spread] saturation.
	MoistureBase, MoistureSpread float64
	// DensityAbsorption is forwarded to the initial sunlight sweep.
	DensityAbsorption float64
}

// Generate builds the initial field: stratified soil and stone under air,
// simplex-noise moisture in the soil, ambient temperature everywhere, and
// a consistent top-down sunlight sweep. The same seed always produces the
// same field.
func Generate(w, h, d int, seed int64, ambient Cell, p GenParams) *Field {
	f := New(w, h, d, ambient)
	noise := opensimplex.NewNormalized(seed)

	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := Cell{
					Material:    Air,
					Temperature: ambient.Temperature,
				}
				switch {
				case y < p.SurfaceY-p.StoneDepth:
					c.Material = Stone
				case y < p.SurfaceY:
					c.Material = Soil
					n := noise.Eval3(
						float64(x)*p.MoistureScale,
						float64(y)*p.MoistureScale,
						float64(z)*p.MoistureScale,
					)
					c.Moisture = clampScalar(Moisture, p.MoistureBase+p.MoistureSpread*n)
				}
				f.Set(Key{x, y, z}, c)
			}
		}
	}

	f.relightColumns(p.DensityAbsorption)
	return f
}
