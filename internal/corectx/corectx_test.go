package corectx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/corerr"
)

func writeHardwareConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "hardware.json")
	body := `{
		"strips": [
			{"name": "front", "backend": "gpio", "chip": "", "line": 18, "pixel_count": 10, "order": "GRB"}
		],
		"zones": [
			{"id": "FLOOR", "display_name": "Floor", "strip": "front", "pixel_count": 10, "enabled": true}
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func writeStaticConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "static.yaml")
	body := "zones:\n  - id: FLOOR\n    brightness: {name: brightness, min: 0, max: 100, step: 5}\nanimations: []\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// New can't open a real GPIO line in a test sandbox; it should fail with a
// wrapped corerr.HardwareUnavailable rather than panic, proving the error
// path threads all the way from gpiostrip.Open through openChannels to New.
func TestNewPropagatesHardwareUnavailable(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		HardwareConfig: writeHardwareConfig(t, dir),
		StaticConfig:   writeStaticConfig(t, dir),
	}
	_, err := New(paths, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error opening unavailable hardware")
	}
	if !errors.Is(err, corerr.HardwareUnavailable) {
		t.Fatalf("expected corerr.HardwareUnavailable, got %v", err)
	}
}

func TestNewMissingHardwareConfigErrors(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		HardwareConfig: filepath.Join(dir, "missing.json"),
		StaticConfig:   writeStaticConfig(t, dir),
	}
	if _, err := New(paths, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing hardware config")
	}
}

func TestNewMissingStaticConfigErrors(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		HardwareConfig: writeHardwareConfig(t, dir),
		StaticConfig:   filepath.Join(dir, "missing.yaml"),
	}
	if _, err := New(paths, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing static config")
	}
}
