// Package state implements the Zone, Animation, and App State services
// (§4.12, C12): the core's mutable state, backed by an immutable YAML
// Config plus a mutable JSON State persisted with debounced saves.
package state

import (
	"fmt"
	"math"

	"github.com/fcurrie/ledcore/internal/corerr"
)

// ParamConfig is the immutable layer of the three-layer parameter pattern:
// type, bounds, and step, loaded from static config.
type ParamConfig struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Step  float64 `yaml:"step"`
	Wraps bool    `yaml:"wraps"`
}

// ParamState is the mutable layer: the parameter's current value.
type ParamState struct {
	Value float64 `json:"value"`
}

// Param is the Combined helper binding a ParamConfig to its ParamState.
type Param struct {
	Config ParamConfig
	State  *ParamState
}

// Clamp bounds value to [Config.Min, Config.Max], or wraps it into that
// inclusive range if Config.Wraps is set (modulus Config.Max-Config.Min+1,
// so an inclusive 0..359 hue range wraps on a 360 modulus).
func (p Param) Clamp(value float64) float64 {
	span := p.Config.Max - p.Config.Min + 1
	if p.Config.Wraps && span > 0 {
		v := math.Mod(value-p.Config.Min, span)
		if v < 0 {
			v += span
		}
		return p.Config.Min + v
	}
	if value < p.Config.Min {
		return p.Config.Min
	}
	if value > p.Config.Max {
		return p.Config.Max
	}
	return value
}

// Validate reports whether value falls within Config.Min/Max (wrap-aware:
// always valid when Config.Wraps is set, since Clamp can always map it in).
func (p Param) Validate(value float64) error {
	if p.Config.Wraps {
		return nil
	}
	if value < p.Config.Min || value > p.Config.Max {
		return fmt.Errorf("state: parameter %s value %v outside [%v,%v]: %w",
			p.Config.Name, value, p.Config.Min, p.Config.Max, corerr.InvalidArgument)
	}
	return nil
}

// Adjust moves the parameter's value by delta step-multiples (delta=2 with
// Config.Step=5 moves the value by 10) and returns the new, clamped/wrapped
// value.
func (p Param) Adjust(delta float64) float64 {
	next := p.Clamp(p.State.Value + delta*p.Config.Step)
	p.State.Value = next
	return next
}
