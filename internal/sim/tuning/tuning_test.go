package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if got != Default() {
		t.Fatal("expected defaults when the file is missing")
	}
}

func TestLoad_PartialFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	content := "tick_duration_ms: 50\nhunger_per_tick: 0.02\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.TickDurationMs != 50 {
		t.Fatalf("expected tick_duration_ms 50, got %d", got.TickDurationMs)
	}
	if got.HungerPerTick != 0.02 {
		t.Fatalf("expected hunger_per_tick 0.02, got %f", got.HungerPerTick)
	}
	if got.CropStageTicks != Default().CropStageTicks {
		t.Fatal("expected unset fields to keep their defaults")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_duration_ms: [nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
