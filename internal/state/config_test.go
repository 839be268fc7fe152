package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStaticConfigParsesZonesAndAnimations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "static.yaml")
	yamlBody := `
zones:
  - id: porch
    brightness:
      name: brightness
      min: 0
      max: 100
      step: 5
animations:
  - id: sparkle
    display_name: Sparkle
    parameters:
      speed:
        name: speed
        min: 0
        max: 10
        step: 1
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadStaticConfig(path)
	if err != nil {
		t.Fatalf("LoadStaticConfig: %v", err)
	}
	if len(cfg.Zones) != 1 || cfg.Zones[0].ID != "porch" {
		t.Fatalf("Zones = %+v, want one zone named porch", cfg.Zones)
	}
	if cfg.Zones[0].Brightness.Max != 100 {
		t.Fatalf("Brightness.Max = %v, want 100", cfg.Zones[0].Brightness.Max)
	}
	if len(cfg.Animations) != 1 || cfg.Animations[0].ID != "sparkle" {
		t.Fatalf("Animations = %+v, want one animation named sparkle", cfg.Animations)
	}
	if cfg.Animations[0].Parameters["speed"].Max != 10 {
		t.Fatalf("speed.Max = %v, want 10", cfg.Animations[0].Parameters["speed"].Max)
	}
}

func TestLoadStaticConfigMissingFileErrors(t *testing.T) {
	_, err := LoadStaticConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
