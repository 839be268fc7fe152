// Package corerr defines the sentinel error kinds shared across the core.
//
// Call sites wrap one of these with fmt.Errorf("...: %w", corerr.InvalidArgument)
// so callers can dispatch on kind with errors.Is while still getting a
// descriptive message, the same shape the teacher repo uses for its own
// wrapped stdlib errors.
package corerr

import "errors"

var (
	// ConfigInvalid marks a schema or range violation in a config or state file at load time.
	ConfigInvalid = errors.New("config invalid")
	// HardwareUnavailable marks a strip driver that failed to initialize.
	HardwareUnavailable = errors.New("hardware unavailable")
	// HardwareTransient marks a single frame push failure on one channel.
	HardwareTransient = errors.New("hardware transient error")
	// InvalidArgument marks an out-of-range parameter or unknown zone/animation.
	InvalidArgument = errors.New("invalid argument")
	// NotFound marks an unknown zone ID or animation ID.
	NotFound = errors.New("not found")
	// IllegalState marks an operation incompatible with the current mode.
	IllegalState = errors.New("illegal state")
	// Cancelled marks cooperative cancellation; never convert this to a normal return.
	Cancelled = errors.New("cancelled")
	// Timeout marks a shutdown handler or cleanup step that exceeded its budget.
	Timeout = errors.New("timeout")
)
