package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the on-disk YAML layout: indexer settings and runtime settings side by side.
type Profile struct {
	Config  `yaml:",inline"`
	Runtime `yaml:",inline"`
}

// LoadFile overlays the YAML profile at path onto base and rt.
// Keys absent from the file keep their current values.
func LoadFile(path string, base Config, rt Runtime) (Config, Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, Runtime{}, fmt.Errorf("load profile %q: %w", path, err)
	}

	p := Profile{Config: base, Runtime: rt}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Config{}, Runtime{}, fmt.Errorf("parse profile %q: %w", path, err)
	}
	cfg, err := p.Config.Normalize()
	if err != nil {
		return Config{}, Runtime{}, fmt.Errorf("profile %q: %w", path, err)
	}
	return cfg, p.Runtime, nil
}
