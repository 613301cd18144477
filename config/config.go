// Package config provides configuration loading and access for the baker.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flowfield/systems"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all baker configuration parameters.
type Config struct {
	Field     FieldConfig     `yaml:"field"`
	Surface   SurfaceConfig   `yaml:"surface"`
	Query     QueryConfig     `yaml:"query"`
	Build     BuildConfig     `yaml:"build"`
	Scene     SceneConfig     `yaml:"scene"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// FieldConfig holds the flow field build options.
type FieldConfig struct {
	Resolution int        `yaml:"resolution"` // One of 32, 64, 128, 256, 512, 1024
	Radius     float64    `yaml:"radius"`     // Obstacle influence radius in world units
	BlurSize   int        `yaml:"blur_size"`  // Box blur radius in cells, 0 disables
	Bias       [2]float64 `yaml:"bias"`       // Prevailing direction added to every cell
}

// SurfaceConfig places the field plane in the world.
type SurfaceConfig struct {
	Width       float64    `yaml:"width"`
	Depth       float64    `yaml:"depth"`
	Position    [3]float64 `yaml:"position"`
	Orientation [4]float64 `yaml:"orientation"` // Quaternion w, x, y, z
}

// QueryConfig holds spatial index parameters.
type QueryConfig struct {
	CellSize   float64 `yaml:"cell_size"`
	MaxResults int     `yaml:"max_results"` // Obstacles considered per sample
}

// BuildConfig holds builder parameters.
type BuildConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// SceneConfig lists the obstacles placed in the scene.
type SceneConfig struct {
	Spheres  []SphereConfig  `yaml:"spheres"`
	Boxes    []BoxConfig     `yaml:"boxes"`
	Terrains []TerrainConfig `yaml:"terrains"`
}

// SphereConfig is a solid ball obstacle.
type SphereConfig struct {
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
}

// BoxConfig is a solid oriented box obstacle.
type BoxConfig struct {
	Center      [3]float64 `yaml:"center"`
	HalfExtents [3]float64 `yaml:"half_extents"`
	Orientation [4]float64 `yaml:"orientation"` // w, x, y, z; zero means identity
}

// TerrainConfig describes a procedurally generated island.
type TerrainConfig struct {
	Origin [3]float64  `yaml:"origin"` // Minimum corner of the footprint
	Size   [3]float64  `yaml:"size"`   // Footprint extent; y is the height scale
	Cols   int         `yaml:"cols"`
	Rows   int         `yaml:"rows"`
	Seed   int64       `yaml:"seed"`
	Noise  NoiseConfig `yaml:"noise"`
}

// NoiseConfig holds fractal noise parameters for terrain generation.
type NoiseConfig struct {
	Scale      float64 `yaml:"scale"`
	Octaves    int     `yaml:"octaves"`
	Lacunarity float64 `yaml:"lacunarity"`
	Gain       float64 `yaml:"gain"`
}

// OutputConfig names the files written by a bake.
type OutputConfig struct {
	Raster       string `yaml:"raster"`        // Encoded flow PNG
	Quiver       string `yaml:"quiver"`        // Arrow plot PNG, empty disables
	QuiverStride int    `yaml:"quiver_stride"` // Cells between arrows
	QuiverSize   int    `yaml:"quiver_size"`   // Output image edge in pixels
	Cells        bool   `yaml:"cells"`         // Write per-cell CSV
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// TelemetryConfig holds build timing settings.
type TelemetryConfig struct {
	PerfWindow int `yaml:"perf_window"` // Builds kept for rolling averages
}

// DerivedConfig holds values computed from config, not loaded from YAML.
type DerivedConfig struct {
	Params  systems.Params
	Surface systems.Surface
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
// If path is empty, only embedded defaults are used.
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
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Params = systems.Params{
		Resolution: c.Field.Resolution,
		Radius:     c.Field.Radius,
		BlurSize:   c.Field.BlurSize,
		Bias:       r2.Vec{X: c.Field.Bias[0], Y: c.Field.Bias[1]},
	}
	c.Derived.Surface = systems.Surface{
		Width: c.Surface.Width,
		Depth: c.Surface.Depth,
		Pose: systems.Pose{
			Position:    Vec3(c.Surface.Position),
			Orientation: Quat(c.Surface.Orientation),
		},
	}
}

// Recompute refreshes derived values after fields are changed in code.
func (c *Config) Recompute() error {
	c.computeDerived()
	return c.Validate()
}

// Validate checks the loaded values before anything is built from them.
func (c *Config) Validate() error {
	if err := c.Derived.Params.Validate(); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	if err := c.Derived.Surface.Validate(); err != nil {
		return fmt.Errorf("surface: %w", err)
	}
	if !(c.Query.CellSize > 0) {
		return fmt.Errorf("query: %w: cell_size %v must be positive", systems.ErrPrecondition, c.Query.CellSize)
	}
	if c.Query.MaxResults < 0 {
		return fmt.Errorf("query: %w: max_results %d is negative", systems.ErrPrecondition, c.Query.MaxResults)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build: %w: workers %d is negative", systems.ErrPrecondition, c.Build.Workers)
	}
	for i, s := range c.Scene.Spheres {
		if !(s.Radius >= 0) {
			return fmt.Errorf("scene.spheres[%d]: %w: radius %v", i, systems.ErrPrecondition, s.Radius)
		}
	}
	for i, b := range c.Scene.Boxes {
		if b.HalfExtents[0] < 0 || b.HalfExtents[1] < 0 || b.HalfExtents[2] < 0 {
			return fmt.Errorf("scene.boxes[%d]: %w: negative half extents %v", i, systems.ErrPrecondition, b.HalfExtents)
		}
	}
	for i, t := range c.Scene.Terrains {
		if t.Cols < 2 || t.Rows < 2 || !(t.Size[0] > 0) || !(t.Size[2] > 0) || t.Size[1] < 0 {
			return fmt.Errorf("scene.terrains[%d]: %w: degenerate footprint %dx%d size %v", i, systems.ErrPrecondition, t.Cols, t.Rows, t.Size)
		}
	}
	return nil
}

// NoiseParams converts the YAML noise block.
func (n NoiseConfig) NoiseParams() systems.NoiseParams {
	return systems.NoiseParams{
		Scale:      n.Scale,
		Octaves:    n.Octaves,
		Lacunarity: n.Lacunarity,
		Gain:       n.Gain,
	}
}

// Vec3 converts a YAML triple.
func Vec3(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Quat converts a w, x, y, z quadruple. All zeros means identity.
func Quat(q [4]float64) quat.Number {
	if q == [4]float64{} {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
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
