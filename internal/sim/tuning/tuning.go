package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Stream     Stream     `yaml:"stream"`
	Vehicle    Vehicle    `yaml:"vehicle"`
	Weapons    Weapons    `yaml:"weapons"`
	Director   Director   `yaml:"director"`
	Projectile Projectile `yaml:"projectile"`
}

type Stream struct {
	Distance float64 `yaml:"distance"`
}

type Vehicle struct {
	StartSpeed float64 `yaml:"start_speed"`
	MaxSpeed   float64 `yaml:"max_speed"`
	HP         int     `yaml:"hp"`
}

type Weapons struct {
	EquipDelayTicks    int     `yaml:"equip_delay_ticks"`
	UnjamDelayTicks    int     `yaml:"unjam_delay_ticks"`
	DisableDelayTicks  int     `yaml:"disable_delay_ticks"`
	JamProbability     float64 `yaml:"jam_probability"`
	JamHealthThreshold float64 `yaml:"jam_health_threshold"`

	// Ammo types that never jam (area/explosive/throwable weapons).
	NoJamAmmoTypes []string `yaml:"no_jam_ammo_types"`
}

type Director struct {
	SpawnEveryTicks int     `yaml:"spawn_every_ticks"`
	MaxEnemies      int     `yaml:"max_enemies"`
	SpawnLookahead  float64 `yaml:"spawn_lookahead"`
	ContactDamage   int     `yaml:"contact_damage"`
}

type Projectile struct {
	Speed    float64 `yaml:"speed"`
	MaxRange float64 `yaml:"max_range"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Defaults returns the tuning used when no tuning.yaml is available
// (snapshot resumes on a bare data dir).
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		SnapshotEveryTicks: 3000,
		Stream:             Stream{Distance: 300},
		Vehicle:            Vehicle{StartSpeed: 2, MaxSpeed: 6, HP: 100},
		Weapons: Weapons{
			EquipDelayTicks:    10,
			UnjamDelayTicks:    14,
			DisableDelayTicks:  8,
			JamProbability:     0.25,
			JamHealthThreshold: 0.15,
			NoJamAmmoTypes:     []string{"ROCKET", "GRENADE", "MINE"},
		},
		Director:   Director{SpawnEveryTicks: 25, MaxEnemies: 24, SpawnLookahead: 80, ContactDamage: 10},
		Projectile: Projectile{Speed: 12, MaxRange: 400},
	}
}
