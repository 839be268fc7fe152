// Package hwconfig loads the static hardware layout (§6): which strips exist,
// which backend drives each, and how zones tile each strip's pixel range.
//
// Grounded on the teacher's internal/config/config.go JSON-file-decode
// pattern, carried over unchanged in shape and swapped from the teacher's
// display/GRBL fields to the strip/zone layout this domain needs.
package hwconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// Backend names which stripio implementation drives a StripConfig.
type Backend string

const (
	BackendGPIO Backend = "gpio"
	BackendPIO  Backend = "pio"
)

// StripConfig describes one physical strip: its backend and the backend's
// own connection parameters.
type StripConfig struct {
	Name       string             `json:"name"`
	Backend    Backend            `json:"backend"`
	Chip       string             `json:"chip,omitempty"` // gpio backend
	Line       int                `json:"line,omitempty"` // gpio backend
	PixelCount int                `json:"pixel_count"`
	Order      stripio.ColorOrder `json:"order"`
}

// ZoneConfig is the JSON wire shape of zonespec.Config (PixelCount in
// declaration order per strip; StartIndex/EndIndex are computed, not
// loaded).
type ZoneConfig struct {
	ID          zonespec.ID `json:"id"`
	DisplayName string      `json:"display_name"`
	Strip       string      `json:"strip"` // StripConfig.Name this zone tiles
	PixelCount  int         `json:"pixel_count"`
	Reversed    bool        `json:"reversed"`
	Enabled     bool        `json:"enabled"`
}

// Config is the whole installation's physical layout.
type Config struct {
	Strips []StripConfig `json:"strips"`
	Zones  []ZoneConfig  `json:"zones"`
}

// Load reads and parses a JSON hardware layout file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hwconfig: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("hwconfig: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ZonesByStrip groups this config's zones by the strip name they tile,
// preserving declaration order within each group (the order ComputeIndices
// must see).
func (c *Config) ZonesByStrip() map[string][]zonespec.Config {
	out := make(map[string][]zonespec.Config)
	for _, z := range c.Zones {
		out[z.Strip] = append(out[z.Strip], zonespec.Config{
			ID:          z.ID,
			DisplayName: z.DisplayName,
			PixelCount:  z.PixelCount,
			Reversed:    z.Reversed,
			Enabled:     z.Enabled,
		})
	}
	for strip, zones := range out {
		out[strip] = zonespec.ComputeIndices(zones)
	}
	return out
}
