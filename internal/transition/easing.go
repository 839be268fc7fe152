package transition

// Easing maps a normalized progress value in [0,1] to an eased progress
// value, also expected to land in [0,1] for its endpoints.
type Easing func(t float64) float64

// Linear is the default easing.
func Linear(t float64) float64 { return t }

// CubicIn starts slow and accelerates.
func CubicIn(t float64) float64 { return t * t * t }

// CubicOut starts fast and decelerates.
func CubicOut(t float64) float64 {
	u := t - 1
	return u*u*u + 1
}
