package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Catalog selects a built-in catalog variant when no catalog file is
	// present in the config directory.
	Catalog string `yaml:"catalog" json:"catalog"`

	PointsPerMessage int64         `yaml:"points_per_message" json:"points_per_message"`
	ActivityCooldown time.Duration `yaml:"activity_cooldown" json:"activity_cooldown"`
	HarvestCooldown  time.Duration `yaml:"harvest_cooldown" json:"harvest_cooldown"`

	DefaultRules   string `yaml:"default_rules" json:"default_rules"`
	DefaultWelcome string `yaml:"default_welcome" json:"default_welcome"`

	Combat Combat `yaml:"combat" json:"combat"`
}

type Combat struct {
	VarianceMin float64 `yaml:"variance_min" json:"variance_min"`
	VarianceMax float64 `yaml:"variance_max" json:"variance_max"`

	// Attacker win: damage ratio = min(AttackerCap, margin*AttackerFactor).
	AttackerCap    float64 `yaml:"attacker_cap" json:"attacker_cap"`
	AttackerFactor float64 `yaml:"attacker_factor" json:"attacker_factor"`
	// Defender win: damage ratio = min(DefenderCap, margin*DefenderFactor).
	DefenderCap    float64 `yaml:"defender_cap" json:"defender_cap"`
	DefenderFactor float64 `yaml:"defender_factor" json:"defender_factor"`
}

func Defaults() Tuning {
	return Tuning{
		Catalog:          "military",
		PointsPerMessage: 10,
		ActivityCooldown: 60 * time.Second,
		HarvestCooldown:  time.Hour,
		DefaultRules:     "Be respectful. No spam. Attack only with /attack.",
		DefaultWelcome:   "Welcome to the battlefield! Chat to earn points, buy an army, and conquer.",
		Combat: Combat{
			VarianceMin:    0.8,
			VarianceMax:    1.2,
			AttackerCap:    0.3,
			AttackerFactor: 0.5,
			DefenderCap:    0.2,
			DefenderFactor: 0.3,
		},
	}
}

// Load reads tuning.yaml on top of Defaults, so a file only needs the
// keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.Catalog = strings.ToLower(strings.TrimSpace(t.Catalog))
	if t.Catalog == "" {
		t.Catalog = "military"
	}
}

func (t Tuning) Validate() error {
	if t.PointsPerMessage < 0 {
		return fmt.Errorf("points_per_message must be >= 0")
	}
	if t.ActivityCooldown < 0 {
		return fmt.Errorf("activity_cooldown must be >= 0")
	}
	if t.HarvestCooldown < 0 {
		return fmt.Errorf("harvest_cooldown must be >= 0")
	}
	c := t.Combat
	if c.VarianceMin <= 0 || c.VarianceMax < c.VarianceMin {
		return fmt.Errorf("combat variance must satisfy 0 < min <= max")
	}
	if c.AttackerCap < 0 || c.AttackerCap > 1 || c.DefenderCap < 0 || c.DefenderCap > 1 {
		return fmt.Errorf("combat caps must be within [0,1]")
	}
	if c.AttackerFactor < 0 || c.DefenderFactor < 0 {
		return fmt.Errorf("combat factors must be >= 0")
	}
	return nil
}
