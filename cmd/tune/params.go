package main

import (
	"fmt"

	"github.com/verdantlab/thicket/config"
)

// param is one tunable dimension with its search bounds.
type param struct {
	name     string
	min, max float64
	get      func(c *config.Config) float64
	set      func(c *config.Config, v float64)
}

// ParamVector maps between raw config values and the normalized [0,1]
// vector the optimizer works in.
type ParamVector struct {
	params []param
}

// NewParamVector defines the tuned growth parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{params: []param{
		{
			name: "leaf_photo_rate", min: 0.02, max: 0.40,
			get: func(c *config.Config) float64 { return c.Plant.Leaf.PhotoRate },
			set: func(c *config.Config, v float64) { c.Plant.Leaf.PhotoRate = v },
		},
		{
			name: "leaf_maintenance", min: 0.005, max: 0.08,
			get: func(c *config.Config) float64 { return c.Plant.Leaf.Maintenance },
			set: func(c *config.Config, v float64) { c.Plant.Leaf.Maintenance = v },
		},
		{
			name: "seed_uptake_rate", min: 0.01, max: 0.25,
			get: func(c *config.Config) float64 { return c.Plant.Seed.UptakeRate },
			set: func(c *config.Config, v float64) { c.Plant.Seed.UptakeRate = v },
		},
		{
			name: "transport_rate", min: 0.05, max: 1.0,
			get: func(c *config.Config) float64 { return c.Plant.Transport.Rate },
			set: func(c *config.Config, v float64) { c.Plant.Transport.Rate = v },
		},
		{
			name: "moisture_diffusion", min: 0.0, max: 1.0 / 6.0,
			get: func(c *config.Config) float64 { return c.Field.MoistureDiffusion },
			set: func(c *config.Config, v float64) { c.Field.MoistureDiffusion = v },
		},
	}}
}

// Dim returns the search dimensionality.
func (pv *ParamVector) Dim() int { return len(pv.params) }

// Names returns the parameter names in vector order.
func (pv *ParamVector) Names() []string {
	names := make([]string, len(pv.params))
	for i, p := range pv.params {
		names[i] = p.name
	}
	return names
}

// DefaultVector reads the raw values out of a config.
func (pv *ParamVector) DefaultVector(c *config.Config) []float64 {
	x := make([]float64, len(pv.params))
	for i, p := range pv.params {
		x[i] = p.get(c)
	}
	return x
}

// Normalize maps raw values into [0,1] per dimension.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	x := make([]float64, len(raw))
	for i, p := range pv.params {
		x[i] = (raw[i] - p.min) / (p.max - p.min)
	}
	return x
}

// Denormalize maps a normalized vector back to raw values, clamping to
// the per-dimension bounds.
func (pv *ParamVector) Denormalize(x []float64) []float64 {
	raw := make([]float64, len(x))
	for i, p := range pv.params {
		v := p.min + x[i]*(p.max-p.min)
		if v < p.min {
			v = p.min
		}
		if v > p.max {
			v = p.max
		}
		raw[i] = v
	}
	return raw
}

// Apply writes raw values into a config and refreshes derived values.
func (pv *ParamVector) Apply(c *config.Config, raw []float64) error {
	if len(raw) != len(pv.params) {
		return fmt.Errorf("expected %d params, got %d", len(pv.params), len(raw))
	}
	for i, p := range pv.params {
		p.set(c, raw[i])
	}
	return c.Finalize()
}
