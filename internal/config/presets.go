package config

import "sort"

// Presets holds named scene adjustments per body variant. Each entry is
// applied on top of DefaultConfig.
var Presets = map[string]map[string]func(*Config){
	VariantViscoplastic: {
		"drop": func(c *Config) {
			c.Scene.TotalTime = 2.0
		},
		"slump": func(c *Config) {
			c.Body.Block.Lower = Vec3{X: -0.01, Y: 0.0, Z: -0.01}
			c.Body.Block.Upper = Vec3{X: 0.01, Y: 0.06, Z: 0.01}
			c.Body.Viscosity = 0.5
			c.Scene.TotalTime = 3.0
		},
		"thick": func(c *Config) {
			c.Body.Viscosity = 5.0
			c.Body.Cohesion = 0.02
			c.Scene.TotalTime = 2.0
		},
		"throw": func(c *Config) {
			c.Body.Velocity = Vec3{X: 0.5, Y: 1.0}
			c.Scene.TotalTime = 1.5
		},
	},
	VariantElastoplastic: {
		"drop": func(c *Config) {
			c.Body.Name = "elastoplastic"
			c.Body.FrictionAngle = 30
			c.Body.Cohesion = 0.01
		},
		"sand": func(c *Config) {
			c.Body.Name = "elastoplastic"
			c.Body.FrictionAngle = 35
			c.Body.Viscosity = 0.1
			c.Scene.TotalTime = 3.0
		},
		"rubber": func(c *Config) {
			c.Body.Name = "elastoplastic"
			c.Body.Cohesion = 0.5
			c.Body.Stiffness = 0.9
			c.Body.Iterations = 5
		},
	},
}

// GetPreset returns the default configuration with the named preset
// applied, or nil when the variant or preset is unknown.
func GetPreset(variant, preset string) *Config {
	variantPresets, ok := Presets[variant]
	if !ok {
		return nil
	}
	apply, ok := variantPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Variant = variant
	apply(cfg)
	return cfg
}

// ListPresets returns the preset names of a variant in sorted order.
func ListPresets(variant string) []string {
	variantPresets, ok := Presets[variant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(variantPresets))
	for name := range variantPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
