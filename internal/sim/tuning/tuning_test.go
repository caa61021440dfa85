package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "points_per_message: 2000\nactivity_cooldown: 0s\ncombat:\n  attacker_cap: 0.25\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.PointsPerMessage != 2000 {
		t.Fatalf("points_per_message=%d", tune.PointsPerMessage)
	}
	if tune.ActivityCooldown != 0 {
		t.Fatalf("activity_cooldown=%v", tune.ActivityCooldown)
	}
	if tune.HarvestCooldown != time.Hour {
		t.Fatalf("harvest_cooldown should keep default, got %v", tune.HarvestCooldown)
	}
	if tune.Combat.AttackerCap != 0.25 || tune.Combat.VarianceMax != 1.2 {
		t.Fatalf("unexpected combat tuning: %+v", tune.Combat)
	}
	if tune.Catalog != "military" {
		t.Fatalf("catalog=%q", tune.Catalog)
	}
}

func TestLoad_RejectsNegativeCooldown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("activity_cooldown: -5s\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	tune, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n%+v\n%+v", tune, Defaults())
	}
}
