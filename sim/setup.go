package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verdantlab/thicket/config"
	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

// NewSeedGraph returns the standard initial condition: a single seed node
// planted at the center of the soil surface, growing straight up.
func NewSeedGraph(cfg *config.Config) *plant.Graph {
	cs := cfg.World.CellSize
	base := r3.Vec{
		X: (float64(cfg.World.Width)/2 + 0.5) * cs,
		Y: (float64(cfg.Field.SurfaceY) - 0.5) * cs,
		Z: (float64(cfg.World.Depth)/2 + 0.5) * cs,
	}
	g := plant.NewGraph()
	g.AddRoot(plant.KindSeed, base, plant.ChildSpec{
		Kind:    plant.KindSeed,
		Dir:     r3.Vec{Y: 1},
		Length:  cfg.Plant.SeedLength,
		Reserve: cfg.Plant.SeedReserve,
	})
	return g
}

// NewField generates the initial environment for the configured world.
func NewField(cfg *config.Config, seed int64) *field.Field {
	ambient := field.Cell{
		Material:    field.Air,
		Sunlight:    cfg.Field.AmbientSunlight,
		Moisture:    cfg.Field.AmbientMoisture,
		Temperature: cfg.Field.AmbientTemperature,
	}
	return field.Generate(
		cfg.World.Width, cfg.World.Height, cfg.World.Depth,
		seed, ambient,
		field.GenParams{
			SurfaceY:          cfg.Field.SurfaceY,
			StoneDepth:        cfg.Field.StoneDepth,
			MoistureScale:     cfg.Field.MoistureScale,
			MoistureBase:      cfg.Field.MoistureBase,
			MoistureSpread:    cfg.Field.MoistureSpread,
			DensityAbsorption: cfg.Field.DensityAbsorption,
		},
	)
}
