package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fcurrie/ledcore/internal/zonespec"
)

// ZoneStaticConfig is the immutable, installation-defined constraint set for
// one zone's mutable state.
type ZoneStaticConfig struct {
	ID         zonespec.ID `yaml:"id"`
	Brightness ParamConfig `yaml:"brightness"`
}

// AnimationStaticConfig describes one installable animation and its typed
// parameters.
type AnimationStaticConfig struct {
	ID          string                 `yaml:"id"`
	DisplayName string                 `yaml:"display_name"`
	Parameters  map[string]ParamConfig `yaml:"parameters"`
}

// StaticConfig is the whole-core immutable config, loaded once at startup.
type StaticConfig struct {
	Zones      []ZoneStaticConfig      `yaml:"zones"`
	Animations []AnimationStaticConfig `yaml:"animations"`
}

// LoadStaticConfig reads and parses a YAML static config file.
func LoadStaticConfig(path string) (*StaticConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("state: open static config %s: %w", path, err)
	}
	defer f.Close()

	var cfg StaticConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("state: parse static config %s: %w", path, err)
	}
	return &cfg, nil
}

func defaultBrightnessParam() ParamConfig {
	return ParamConfig{Name: "brightness", Min: 0, Max: 100, Step: 5}
}
