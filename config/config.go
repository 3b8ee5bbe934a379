// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verdantlab/thicket/plant"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Field     FieldConfig     `yaml:"field"`
	Plant     PlantConfig     `yaml:"plant"`
	Sense     SenseConfig     `yaml:"sense"`
	Sim       SimConfig       `yaml:"sim"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig fixes the simulated volume.
type WorldConfig struct {
	Width    int     `yaml:"width"`  // cells along x
	Height   int     `yaml:"height"` // cells along y (up)
	Depth    int     `yaml:"depth"`  // cells along z
	CellSize float64 `yaml:"cell_size"`
}

// FieldConfig holds environment generation and relaxation parameters.
type FieldConfig struct {
	SurfaceY           int     `yaml:"surface_y"`   // first air layer
	StoneDepth         int     `yaml:"stone_depth"` // soil layers before stone
	AmbientSunlight    float64 `yaml:"ambient_sunlight"`
	AmbientMoisture    float64 `yaml:"ambient_moisture"`
	AmbientTemperature float64 `yaml:"ambient_temperature"`
	MoistureScale      float64 `yaml:"moisture_scale"`
	MoistureBase       float64 `yaml:"moisture_base"`
	MoistureSpread     float64 `yaml:"moisture_spread"`
	MoistureDiffusion  float64 `yaml:"moisture_diffusion"`
	Evaporation        float64 `yaml:"evaporation"`
	TemperatureRelax   float64 `yaml:"temperature_relax"`
	DensityAbsorption  float64 `yaml:"density_absorption"`
}

// KindParams holds per-node-kind metabolic parameters.
type KindParams struct {
	Maintenance float64 `yaml:"maintenance"` // reserve drain per tick
	PhotoRate   float64 `yaml:"photo_rate"`  // reserve gain per tick at full light
	UptakeRate  float64 `yaml:"uptake_rate"` // moisture drawn per tick at full saturation
	Density     float64 `yaml:"density"`     // plant density contributed to the node's cell
}

// TransportConfig tunes reserve sharing between parent and child nodes.
type TransportConfig struct {
	Surplus float64 `yaml:"surplus"` // reserve above which a node shares
	Need    float64 `yaml:"need"`    // reserve below which a child receives
	Rate    float64 `yaml:"rate"`    // reserve moved per receiving child per tick
}

// PlantConfig holds plant-side parameters.
type PlantConfig struct {
	SeedLength  float64         `yaml:"seed_length"`
	SeedReserve float64         `yaml:"seed_reserve"`
	Seed        KindParams      `yaml:"seed"`
	Stem        KindParams      `yaml:"stem"`
	Branch      KindParams      `yaml:"branch"`
	Leaf        KindParams      `yaml:"leaf"`
	Meristem    KindParams      `yaml:"meristem"`
	Transport   TransportConfig `yaml:"transport"`
}

// SenseConfig tunes the sensing stage.
type SenseConfig struct {
	MoistureRadius  int     `yaml:"moisture_radius"`  // cells around the base
	CrowdingRadius  float64 `yaml:"crowding_radius"`  // world units
	LightSamples    int     `yaml:"light_samples"`    // cone sample directions
	LightSpreadDeg  float64 `yaml:"light_spread_deg"` // cone half angle
	LightStep       float64 `yaml:"light_step"`       // world units per march step
	LightSteps      int     `yaml:"light_steps"`      // march steps per sample
	OcclusionPerHit float64 `yaml:"occlusion_per_hit"`
}

// SimConfig tunes scheduling.
type SimConfig struct {
	Workers           int `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int `yaml:"parallel_threshold"` // serial below this node count
}

// TelemetryConfig tunes stats collection.
type TelemetryConfig struct {
	WindowTicks int `yaml:"window_ticks"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	Kind           [plant.NumKinds]KindParams // per-kind params indexed by plant.Kind
	LightSpreadRad float64
}

// KindParams returns the metabolic parameters for a node kind.
func (c *Config) KindParams(k plant.Kind) KindParams {
	return c.Derived.Kind[k]
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. Validation failures
// here are startup faults: nothing ticks until the configuration is sound.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the core cannot run on.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 || c.World.Depth <= 0 {
		return fmt.Errorf("config: world extent must be positive, got %dx%dx%d",
			c.World.Width, c.World.Height, c.World.Depth)
	}
	if c.World.CellSize <= 0 {
		return fmt.Errorf("config: cell_size must be positive, got %v", c.World.CellSize)
	}
	if c.Field.SurfaceY < 0 || c.Field.SurfaceY > c.World.Height {
		return fmt.Errorf("config: surface_y %d outside world height %d",
			c.Field.SurfaceY, c.World.Height)
	}
	if c.Field.AmbientSunlight < 0 || c.Field.AmbientSunlight > 1 {
		return fmt.Errorf("config: ambient_sunlight %v outside [0,1]", c.Field.AmbientSunlight)
	}
	if c.Field.AmbientMoisture < 0 || c.Field.AmbientMoisture > 1 {
		return fmt.Errorf("config: ambient_moisture %v outside [0,1]", c.Field.AmbientMoisture)
	}
	if c.Field.MoistureDiffusion < 0 || c.Field.MoistureDiffusion > 1.0/6.0 {
		return fmt.Errorf("config: moisture_diffusion %v outside [0,1/6]", c.Field.MoistureDiffusion)
	}
	for _, v := range []float64{c.Field.Evaporation, c.Field.TemperatureRelax, c.Field.DensityAbsorption} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("config: relaxation rates must be in [0,1]")
		}
	}
	if c.Plant.SeedReserve < 0 || c.Plant.SeedLength <= 0 {
		return fmt.Errorf("config: seed_reserve must be >= 0 and seed_length > 0")
	}
	if c.Sense.LightSamples <= 0 || c.Sense.LightSteps <= 0 || c.Sense.LightStep <= 0 {
		return fmt.Errorf("config: light sampling needs positive samples, steps and step size")
	}
	if c.Sense.OcclusionPerHit < 0 || c.Sense.OcclusionPerHit > 1 {
		return fmt.Errorf("config: occlusion_per_hit %v outside [0,1]", c.Sense.OcclusionPerHit)
	}
	if c.Sim.ParallelThreshold < 1 {
		return fmt.Errorf("config: parallel_threshold must be >= 1")
	}
	if c.Telemetry.WindowTicks < 1 {
		return fmt.Errorf("config: window_ticks must be >= 1")
	}
	return nil
}

// Finalize revalidates and recomputes derived values after programmatic
// changes to an already-loaded config (e.g. parameter sweeps).
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Kind[plant.KindSeed] = c.Plant.Seed
	c.Derived.Kind[plant.KindStem] = c.Plant.Stem
	c.Derived.Kind[plant.KindBranch] = c.Plant.Branch
	c.Derived.Kind[plant.KindLeaf] = c.Plant.Leaf
	c.Derived.Kind[plant.KindMeristem] = c.Plant.Meristem
	c.Derived.LightSpreadRad = c.Sense.LightSpreadDeg * math.Pi / 180
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
