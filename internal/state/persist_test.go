package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFlushWritesSnapshotAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	type payload struct {
		Count int `json:"count"`
	}
	p := NewPersister(path, func() any { return payload{Count: 3} }, zerolog.Nop())

	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got payload
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Count != 3 {
		t.Fatalf("Count = %d, want 3", got.Count)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("expected temp file cleaned up, found %s", e.Name())
		}
	}
}

func TestScheduleSaveDebouncesRapidCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	calls := 0
	p := NewPersister(path, func() any {
		calls++
		return calls
	}, zerolog.Nop())

	p.ScheduleSave()
	p.ScheduleSave()
	p.ScheduleSave()

	time.Sleep(debounceWindow + 200*time.Millisecond)

	if calls != 1 {
		t.Fatalf("expected exactly one flush after debounced rapid calls, got %d", calls)
	}
}
