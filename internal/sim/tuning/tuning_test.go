package tuning

import "testing"

func TestLoad_RepoTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.TickRateHz != 20 {
		t.Fatalf("tick rate: %d", tune.TickRateHz)
	}
	if tune.Stream.Distance != 300 {
		t.Fatalf("stream distance: %.1f", tune.Stream.Distance)
	}
	if tune.Weapons.JamProbability != 0.25 || tune.Weapons.JamHealthThreshold != 0.15 {
		t.Fatalf("jam tuning: %+v", tune.Weapons)
	}
	if len(tune.Weapons.NoJamAmmoTypes) != 3 {
		t.Fatalf("no-jam ammo types: %v", tune.Weapons.NoJamAmmoTypes)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefaults_MatchShippedTuning(t *testing.T) {
	shipped, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if def.TickRateHz != shipped.TickRateHz || def.Stream != shipped.Stream ||
		def.Vehicle != shipped.Vehicle || def.Director != shipped.Director ||
		def.Projectile != shipped.Projectile {
		t.Fatalf("defaults drifted from configs/tuning.yaml")
	}
}
