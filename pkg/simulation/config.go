package simulation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var configSchema string

// UpdateMode selects how boids observe each other within one tick.
type UpdateMode string

const (
	// Sequential updates boids in index order, later boids see the already
	// updated state of earlier ones.
	Sequential UpdateMode = "sequential"
	// SnapshotMode makes every boid steer from a copy of the flock taken at tick start.
	SnapshotMode UpdateMode = "snapshot"
)

// Placement selects where boids are spawned.
type Placement string

const (
	// Uniform spreads boids uniformly in the bounding box.
	Uniform Placement = "uniform"
	// Edges spawns boids alternately near the x-min and x-max faces.
	Edges Placement = "edges"
)

var (
	ErrNegativeCount      = errors.New("boid count must not be negative")
	ErrUnknownUpdateMode  = errors.New("unknown update mode")
	ErrUnknownPlacement   = errors.New("unknown placement")
	ErrUnknownSetting     = errors.New("unknown setting")
	ErrUnsupportedSetting = errors.New("setting value out of domain")
)

type Config struct {
	// Population
	NumBoids int    `json:"numBoids" toml:"numBoids"`
	Seed     uint64 `json:"seed" toml:"seed"` // 0 picks a seed from the clock

	UpdateMode UpdateMode `json:"updateMode" toml:"updateMode"`
	Placement  Placement  `json:"placement" toml:"placement"`

	// Boids flocking parameters (matching pkg/behavior)
	behavior.Settings
}

func DefaultConfig() *Config {
	return &Config{
		NumBoids:   30,
		UpdateMode: Sequential,
		Placement:  Uniform,
		Settings: behavior.Settings{
			CenteringFactor: 0.0001,
			RepulsionFactor: 0.05,
			MatchingFactor:  0.05,
			Spacing:         5,
			SpeedLimit:      10,
			MinBoundary:     geometry.Vector3D{X: -10, Y: 0, Z: -10},
			MaxBoundary:     geometry.Vector3D{X: 10, Y: 8, Z: 10},
			TurnFactor:      0.2,
			PerchTimerRange: behavior.Range{Min: 1, Max: 5},
			GroundEpsilon:   0.1,
			TurnRate:        5,
		},
	}
}

// Validate checks the configuration before a flock is built from it.
func (c *Config) Validate() error {
	var errs []error
	if c.NumBoids < 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrNegativeCount, c.NumBoids))
	}
	switch c.UpdateMode {
	case Sequential, SnapshotMode:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownUpdateMode, c.UpdateMode))
	}
	switch c.Placement {
	case Uniform, Edges:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownPlacement, c.Placement))
	}
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a JSON or TOML file (by extension), validates it
// against the embedded schema and overlays it onto DefaultConfig.
func LoadConfig(configFile string) (*Config, error) {
	// 1. Compile Schema
	sch, err := jsonschema.CompileString("config.schema.json", configSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Read Config File
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	isTOML := strings.EqualFold(filepath.Ext(configFile), ".toml")

	// 3. Validate
	doc, err := decodeDocument(b, isTOML)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Unmarshal into Struct, on top of the defaults
	cfg := DefaultConfig()
	if isTOML {
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}
	return cfg, nil
}

// decodeDocument returns the file as a generic JSON document for schema validation.
// TOML documents go through a JSON round trip so integers and tables look the way
// the schema validator expects.
func decodeDocument(b []byte, isTOML bool) (any, error) {
	if isTOML {
		var m map[string]any
		if _, err := toml.Decode(string(b), &m); err != nil {
			return nil, fmt.Errorf("failed to decode config toml: %w", err)
		}
		var err error
		if b, err = json.Marshal(m); err != nil {
			return nil, fmt.Errorf("failed to convert config toml: %w", err)
		}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	return v, nil
}
