// Package debugctl implements the frame-by-frame playback controller
// (§1.3 supplement, grounded on
// original_source/src/controllers/led_controller/frame_playback_controller.py):
// a small facility layered over the Frame Manager's pause/step primitives
// plus direct DEBUG-priority submissions, kept off the Manager's own public
// API per §4.5.4's design note.
package debugctl

import (
	"time"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// FrameManager is the subset of framemanager.Manager the debug controller
// needs.
type FrameManager interface {
	Pause()
	Resume()
	StepFrame()
	ClearPriority(p frame.Priority)
	SubmitFullStrip(f frame.Frame)
	SubmitZoneFrame(f frame.Frame)
	SubmitPixelFrame(f frame.Frame)
}

// Controller exposes the debug-session operations: pausing the render
// ticker, stepping it one tick at a time, and injecting DEBUG-priority
// frames that outrank everything else until cleared.
type Controller struct {
	mgr FrameManager
}

// New builds a Controller over mgr.
func New(mgr FrameManager) *Controller {
	return &Controller{mgr: mgr}
}

// Pause freezes the Frame Manager's tick loop.
func (c *Controller) Pause() { c.mgr.Pause() }

// Resume unfreezes it.
func (c *Controller) Resume() { c.mgr.Resume() }

// StepFrame advances exactly one tick while paused, then re-pauses.
func (c *Controller) StepFrame() { c.mgr.StepFrame() }

// ClearDebugFrame drops any retained DEBUG-priority frame, letting normal
// arbitration resume picking the winner.
func (c *Controller) ClearDebugFrame() {
	c.mgr.ClearPriority(frame.PriorityDebug)
}

// SetFullStrip injects a DEBUG-priority full-strip frame with no expiry.
func (c *Controller) SetFullStrip(color colorspec.Color) {
	c.mgr.SubmitFullStrip(frame.NewFullStrip(color, frame.PriorityDebug, frame.SourceDebug, 0, time.Now()))
}

// SetZone injects a DEBUG-priority zone frame with no expiry.
func (c *Controller) SetZone(colors map[zonespec.ID]colorspec.Color) {
	c.mgr.SubmitZoneFrame(frame.NewZoneFrame(colors, frame.PriorityDebug, frame.SourceDebug, 0, time.Now()))
}

// SetPixels injects a DEBUG-priority pixel frame with no expiry.
func (c *Controller) SetPixels(pixels map[zonespec.ID][]colorspec.Color) {
	c.mgr.SubmitPixelFrame(frame.NewPixelFrame(pixels, frame.PriorityDebug, frame.SourceDebug, 0, time.Now()))
}
