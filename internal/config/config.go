package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/viscosim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt        = 0.001
	DefaultFrameRate = 25.0
	DefaultTotalTime = 2.0
	DefaultHorizon   = 0.0085
	DefaultSpacing   = 0.005
	DefaultViscosity = 1.0
	DefaultGravity   = -9.8
)

// Variants accepted by Config.Variant.
const (
	VariantViscoplastic  = "viscoplastic"
	VariantElastoplastic = "elastoplastic"
)

type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3) Coord() dynamo.Coord { return dynamo.Coord{X: v.X, Y: v.Y, Z: v.Z} }

type Config struct {
	Variant       string        `yaml:"variant" validate:"required,oneof=viscoplastic elastoplastic"`
	Scene         SceneConfig   `yaml:"scene"`
	Body          BodyConfig    `yaml:"body"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`
	ValidateState bool          `yaml:"validate_state"`
}

type SceneConfig struct {
	Dt        float64 `yaml:"dt" validate:"gt=0"`
	FrameRate float64 `yaml:"frame_rate" validate:"gt=0"`
	TotalTime float64 `yaml:"total_time" validate:"gt=0"`
	Gravity   Vec3    `yaml:"gravity"`
	Lower     Vec3    `yaml:"lower"`
	Upper     Vec3    `yaml:"upper"`
}

type BodyConfig struct {
	Name          string      `yaml:"name" validate:"required"`
	Integrator    string      `yaml:"integrator" validate:"omitempty,oneof=symplectic semi-implicit explicit euler"`
	Horizon       float64     `yaml:"horizon" validate:"gt=0"`
	Viscosity     float64     `yaml:"viscosity" validate:"gte=0"`
	FrictionAngle float64     `yaml:"friction_angle_deg" validate:"gte=0,lt=90"`
	Cohesion      float64     `yaml:"cohesion" validate:"gte=0"`
	Stiffness     float64     `yaml:"stiffness" validate:"gt=0,lte=1"`
	Iterations    int         `yaml:"iterations" validate:"gte=1"`
	MaxNeighbors  int         `yaml:"max_neighbors" validate:"gte=0"`
	Block         BlockConfig `yaml:"block"`
	Velocity      Vec3        `yaml:"velocity"`
	Surface       string      `yaml:"surface"`
	ShowSurface   bool        `yaml:"show_surface"`
}

// BlockConfig describes the particle lattice a body is sampled from.
type BlockConfig struct {
	Lower   Vec3    `yaml:"lower"`
	Upper   Vec3    `yaml:"upper"`
	Spacing float64 `yaml:"spacing" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" validate:"required_if=Enabled true"`
}

func DefaultConfig() *Config {
	return &Config{
		Variant: VariantViscoplastic,
		Scene: SceneConfig{
			Dt:        DefaultDt,
			FrameRate: DefaultFrameRate,
			TotalTime: DefaultTotalTime,
			Gravity:   Vec3{Y: DefaultGravity},
			Lower:     Vec3{X: -0.1, Y: 0, Z: -0.1},
			Upper:     Vec3{X: 0.1, Y: 0.2, Z: 0.1},
		},
		Body: BodyConfig{
			Name:       "viscoplastic",
			Integrator: "symplectic",
			Horizon:    DefaultHorizon,
			Viscosity:  DefaultViscosity,
			Stiffness:  0.5,
			Iterations: 3,
			Block: BlockConfig{
				Lower:   Vec3{X: -0.02, Y: 0.05, Z: -0.02},
				Upper:   Vec3{X: 0.02, Y: 0.09, Z: 0.02},
				Spacing: DefaultSpacing,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Address: ":9090"},
	}
}

// FrictionAngleRadians converts the configured friction angle.
func (b BodyConfig) FrictionAngleRadians() float64 {
	return b.FrictionAngle * math.Pi / 180
}

var validate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", dynamo.ErrInvalidParameter, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if !ordered(c.Scene.Lower, c.Scene.Upper) {
		return fmt.Errorf("%w: scene bounds lower %v above upper %v", dynamo.ErrInvalidParameter, c.Scene.Lower, c.Scene.Upper)
	}
	if !ordered(c.Body.Block.Lower, c.Body.Block.Upper) {
		return fmt.Errorf("%w: block lower %v above upper %v", dynamo.ErrInvalidParameter, c.Body.Block.Lower, c.Body.Block.Upper)
	}
	if c.Scene.Dt > 1/c.Scene.FrameRate {
		return fmt.Errorf("%w: dt %g longer than a frame", dynamo.ErrInvalidParameter, c.Scene.Dt)
	}
	return nil
}

func ordered(lo, hi Vec3) bool {
	return lo.X <= hi.X && lo.Y <= hi.Y && lo.Z <= hi.Z
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Params lists the body parameters SetParam accepts.
var Params = []string{"viscosity", "friction", "cohesion", "horizon", "stiffness"}

// SetParam sets a body parameter by name.
func (c *Config) SetParam(name string, v float64) error {
	switch name {
	case "viscosity":
		c.Body.Viscosity = v
	case "friction":
		c.Body.FrictionAngle = v
	case "cohesion":
		c.Body.Cohesion = v
	case "horizon":
		c.Body.Horizon = v
	case "stiffness":
		c.Body.Stiffness = v
	default:
		return fmt.Errorf("%w: unknown parameter %q (available: %v)", dynamo.ErrInvalidParameter, name, Params)
	}
	return nil
}
