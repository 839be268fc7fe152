package debugctl

import (
	"testing"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/frame"
)

type fakeManager struct {
	paused       bool
	steps        int
	cleared      []frame.Priority
	fullSubmits  []frame.Frame
	zoneSubmits  []frame.Frame
	pixelSubmits []frame.Frame
}

func (f *fakeManager) Pause()     { f.paused = true }
func (f *fakeManager) Resume()    { f.paused = false }
func (f *fakeManager) StepFrame() { f.steps++ }
func (f *fakeManager) ClearPriority(p frame.Priority) {
	f.cleared = append(f.cleared, p)
}
func (f *fakeManager) SubmitFullStrip(fr frame.Frame)  { f.fullSubmits = append(f.fullSubmits, fr) }
func (f *fakeManager) SubmitZoneFrame(fr frame.Frame)  { f.zoneSubmits = append(f.zoneSubmits, fr) }
func (f *fakeManager) SubmitPixelFrame(fr frame.Frame) { f.pixelSubmits = append(f.pixelSubmits, fr) }

func TestPauseResumeStepDelegate(t *testing.T) {
	fm := &fakeManager{}
	c := New(fm)
	c.Pause()
	if !fm.paused {
		t.Fatal("expected Pause to delegate")
	}
	c.StepFrame()
	if fm.steps != 1 {
		t.Fatalf("steps = %d, want 1", fm.steps)
	}
	c.Resume()
	if fm.paused {
		t.Fatal("expected Resume to delegate")
	}
}

func TestSetFullStripSubmitsDebugPriority(t *testing.T) {
	fm := &fakeManager{}
	c := New(fm)
	c.SetFullStrip(colorspec.FromRGB(1, 2, 3))
	if len(fm.fullSubmits) != 1 {
		t.Fatalf("expected one submit, got %d", len(fm.fullSubmits))
	}
	if fm.fullSubmits[0].Priority() != frame.PriorityDebug {
		t.Fatalf("priority = %v, want DEBUG", fm.fullSubmits[0].Priority())
	}
}

func TestClearDebugFrameClearsOnlyDebugLevel(t *testing.T) {
	fm := &fakeManager{}
	c := New(fm)
	c.ClearDebugFrame()
	if len(fm.cleared) != 1 || fm.cleared[0] != frame.PriorityDebug {
		t.Fatalf("cleared = %v, want [DEBUG]", fm.cleared)
	}
}
