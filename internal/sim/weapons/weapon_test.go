package weapons

import (
	"testing"

	"steelrush.gg/internal/sim/catalogs"
)

type scriptRNG struct {
	draws []float64
	i     int
}

func (s *scriptRNG) Float64() float64 {
	if s.i >= len(s.draws) {
		return 0.5
	}
	v := s.draws[s.i]
	s.i++
	return v
}

func (s *scriptRNG) Intn(n int) int { return 0 }

type recordFeedback struct {
	shown, hidden, attacks, jams, unjams, breaks int
	shakes                                       int
}

func (f *recordFeedback) WeaponShown(*Weapon)   { f.shown++ }
func (f *recordFeedback) WeaponHidden(*Weapon)  { f.hidden++ }
func (f *recordFeedback) AttackPlayed(*Weapon)  { f.attacks++ }
func (f *recordFeedback) JamPlayed(*Weapon)     { f.jams++ }
func (f *recordFeedback) UnjamPlayed(*Weapon)   { f.unjams++ }
func (f *recordFeedback) BreakPlayed(*Weapon)   { f.breaks++ }
func (f *recordFeedback) CameraShake(float64)   { f.shakes++ }

type mapAmmo map[string]int

func (m mapAmmo) Add(ammoType string, delta int) int {
	m[ammoType] += delta
	return m[ammoType]
}

type countSpawner struct{ spawned int }

func (s *countSpawner) Spawn(*Weapon) { s.spawned++ }

func testConfig() Config {
	return Config{
		EquipTicks:         3,
		UnjamTicks:         4,
		DisableTicks:       2,
		JamProbability:     0.25,
		JamHealthThreshold: 0.15,
		NoJamAmmoTypes:     map[string]bool{"ROCKET": true, "GRENADE": true, "MINE": true},
	}
}

func testDef(durability int) catalogs.WeaponDef {
	return catalogs.WeaponDef{
		ID:          "MG",
		Name:        "Machine Gun",
		Damage:      6,
		AmmoType:    "BULLET",
		ReloadTicks: 5,
		Accuracy:    0.9,
		Durability:  durability,
	}
}

type rig struct {
	w     *Weapon
	fb    *recordFeedback
	ammo  mapAmmo
	spawn *countSpawner
	rng   *scriptRNG
}

func newRig(durability int, draws ...float64) *rig {
	r := &rig{
		fb:    &recordFeedback{},
		ammo:  mapAmmo{"BULLET": 100},
		spawn: &countSpawner{},
		rng:   &scriptRNG{draws: draws},
	}
	r.w = New(0, testDef(durability), testConfig(), r.rng, r.fb, r.ammo, r.spawn, nil)
	return r
}

// stepTo advances ticks [from+1, to], mirroring the world loop calling Step
// once per tick.
func stepTo(w *Weapon, from, to uint64) {
	for t := from + 1; t <= to; t++ {
		w.Step(t)
	}
}

func TestEnable_DelayedReady(t *testing.T) {
	r := newRig(10)
	item := &Item{WeaponID: "MG", Health: 0.8}

	if !r.w.Enable(item, 0) {
		t.Fatalf("enable from Disabled should be accepted")
	}
	if r.w.State != StateEnabling {
		t.Fatalf("state: got %s want %s", r.w.State, StateEnabling)
	}
	if r.w.Health != 0.8 {
		t.Fatalf("health should load from item: got %v", r.w.Health)
	}
	if r.fb.shown != 1 {
		t.Fatalf("expected show feedback")
	}

	r.w.Step(2)
	if r.w.State != StateEnabling {
		t.Fatalf("ready too early")
	}
	r.w.Step(3)
	if r.w.State != StateReady {
		t.Fatalf("state after equip delay: got %s want %s", r.w.State, StateReady)
	}

	// Re-enable while not Disabled is ignored.
	if r.w.Enable(&Item{WeaponID: "MG", Health: 0.1}, 3) {
		t.Fatalf("enable from Ready should be ignored")
	}
	if r.w.Health != 0.8 {
		t.Fatalf("ignored enable must not reload health")
	}
}

func TestFire_IgnoredOutsideReady(t *testing.T) {
	r := newRig(10)
	if r.w.Fire(0) {
		t.Fatalf("fire from Disabled should be ignored")
	}
	if r.w.State != StateDisabled || r.w.Health != 0 {
		t.Fatalf("ignored fire changed state or health")
	}

	r.w.Enable(&Item{WeaponID: "MG", Health: 1}, 0)
	if r.w.Fire(1) {
		t.Fatalf("fire from Enabling should be ignored")
	}
	if r.w.Health != 1 {
		t.Fatalf("health changed by ignored fire: %v", r.w.Health)
	}
}

func TestFire_SpawnsConsumesReloads(t *testing.T) {
	r := newRig(10, 0.99)
	r.w.Enable(&Item{WeaponID: "MG", Health: 1}, 0)
	stepTo(r.w, 0, 3)

	if !r.w.Fire(3) {
		t.Fatalf("fire from Ready rejected")
	}
	if r.spawn.spawned != 1 {
		t.Fatalf("projectile not spawned")
	}
	if got := r.ammo["BULLET"]; got != 99 {
		t.Fatalf("ammo: got %d want 99", got)
	}
	if r.fb.attacks != 1 {
		t.Fatalf("attack feedback not played")
	}
	if r.w.State != StateReloading {
		t.Fatalf("state: got %s want %s", r.w.State, StateReloading)
	}

	stepTo(r.w, 3, 7)
	if r.w.State != StateReloading {
		t.Fatalf("reload finished early")
	}
	r.w.Step(8)
	if r.w.State != StateReady {
		t.Fatalf("state after reload: got %s want %s", r.w.State, StateReady)
	}
}

func TestFire_BreaksAfterDurabilityShots(t *testing.T) {
	const durability = 3
	r := newRig(durability, 0.99, 0.99, 0.99)
	item := &Item{WeaponID: "MG", Health: 1}
	r.w.Enable(item, 0)
	stepTo(r.w, 0, 3)

	tick := uint64(3)
	for shot := 0; shot < durability; shot++ {
		if r.w.State != StateReady {
			t.Fatalf("shot %d: not ready (state %s)", shot, r.w.State)
		}
		r.w.Fire(tick)
		next := tick + uint64(testDef(durability).ReloadTicks)
		stepTo(r.w, tick, next)
		tick = next
	}

	if r.w.Health > 0 {
		t.Fatalf("health after %d shots: got %v want <= 0", durability, r.w.Health)
	}
	if r.fb.breaks != 1 {
		t.Fatalf("break feedback not played")
	}
	// The final shot routed Breaking -> Disabling; the disable delay has
	// elapsed during stepTo, settling in Disabled with health synced.
	if r.w.State != StateDisabled {
		t.Fatalf("state after break: got %s want %s", r.w.State, StateDisabled)
	}
	if item.Health != 0 {
		t.Fatalf("item health not synced on disable: got %v", item.Health)
	}
	if r.fb.hidden != 1 {
		t.Fatalf("weapon not hidden on disable")
	}
	// Only the surviving shots spawned projectiles.
	if r.spawn.spawned != durability-1 {
		t.Fatalf("spawned: got %d want %d", r.spawn.spawned, durability-1)
	}
}

func TestFire_JamsOnLowHealthAndLowDraw(t *testing.T) {
	r := newRig(100, 0.0)
	r.w.Enable(&Item{WeaponID: "MG", Health: 0.10}, 0)
	stepTo(r.w, 0, 3)

	r.w.Fire(3)
	if r.w.State != StateJamming {
		t.Fatalf("state: got %s want %s", r.w.State, StateJamming)
	}
	if r.spawn.spawned != 0 {
		t.Fatalf("jammed shot must not spawn a projectile")
	}
	if got := r.ammo["BULLET"]; got != 100 {
		t.Fatalf("jammed shot must not consume pool ammo: got %d", got)
	}
	if r.fb.attacks != 1 || r.fb.jams != 1 {
		t.Fatalf("jam should still play the attack animation")
	}

	// Jamming holds until an explicit unjam.
	stepTo(r.w, 3, 50)
	if r.w.State != StateJamming {
		t.Fatalf("jam cleared without unjam")
	}
}

func TestFire_HighDrawDoesNotJam(t *testing.T) {
	r := newRig(100, 0.99)
	r.w.Enable(&Item{WeaponID: "MG", Health: 0.10}, 0)
	stepTo(r.w, 0, 3)

	r.w.Fire(3)
	if r.w.State != StateReloading {
		t.Fatalf("state: got %s want %s", r.w.State, StateReloading)
	}
	if r.spawn.spawned != 1 {
		t.Fatalf("shot should have fired normally")
	}
}

func TestFire_NoJamAmmoTypesNeverJam(t *testing.T) {
	r := newRig(100, 0.0)
	r.w.Def.AmmoType = "ROCKET"
	r.ammo["ROCKET"] = 5
	r.w.Enable(&Item{WeaponID: "MG", Health: 0.10}, 0)
	stepTo(r.w, 0, 3)

	r.w.Fire(3)
	if r.w.State != StateReloading {
		t.Fatalf("rocket launcher jammed: state %s", r.w.State)
	}
}

func TestUnjam_ReturnsReadyAfterDelay(t *testing.T) {
	r := newRig(100, 0.0)
	r.w.Enable(&Item{WeaponID: "MG", Health: 0.10}, 0)
	stepTo(r.w, 0, 3)
	r.w.Fire(3)
	if r.w.State != StateJamming {
		t.Fatalf("setup: expected jam")
	}

	r.w.Unjam(4)
	if r.fb.unjams != 1 || r.fb.shakes != 1 {
		t.Fatalf("unjam feedback missing")
	}
	stepTo(r.w, 4, 7)
	if r.w.State != StateJamming {
		t.Fatalf("unjam completed early")
	}
	r.w.Step(8)
	if r.w.State != StateReady {
		t.Fatalf("state after unjam delay: got %s want %s", r.w.State, StateReady)
	}
}

func TestForceDisable_WaitsForReady(t *testing.T) {
	r := newRig(10, 0.99)
	item := &Item{WeaponID: "MG", Health: 1}
	r.w.Enable(item, 0)
	stepTo(r.w, 0, 3)
	r.w.Fire(3)
	if r.w.State != StateReloading {
		t.Fatalf("setup: expected reloading")
	}

	r.w.ForceDisable(4)
	if r.w.State != StateReloading {
		t.Fatalf("force disable must not interrupt a reload")
	}

	// Reload elapses at tick 8; the latched disable kicks in on that step.
	stepTo(r.w, 3, 8)
	if r.w.State != StateDisabling {
		t.Fatalf("state: got %s want %s", r.w.State, StateDisabling)
	}
	stepTo(r.w, 8, 10)
	if r.w.State != StateDisabled {
		t.Fatalf("state: got %s want %s", r.w.State, StateDisabled)
	}
	if item.Health >= 1 {
		t.Fatalf("worn health not synced to item: %v", item.Health)
	}
}

func TestForceDisable_ImmediateFromReadyNoopFromDisabled(t *testing.T) {
	r := newRig(10)
	r.w.ForceDisable(0)
	if r.w.State != StateDisabled {
		t.Fatalf("force disable from Disabled must be a no-op")
	}

	r.w.Enable(&Item{WeaponID: "MG", Health: 1}, 0)
	stepTo(r.w, 0, 3)
	r.w.ForceDisable(3)
	if r.w.State != StateDisabling {
		t.Fatalf("force disable from Ready should disable immediately")
	}
}

func TestStep_DropsContinuationsForDeadOwner(t *testing.T) {
	r := newRig(10, 0.99)
	dead := false
	r.w.OwnerDead = func() bool { return dead }
	r.w.Enable(&Item{WeaponID: "MG", Health: 1}, 0)
	stepTo(r.w, 0, 3)
	r.w.Fire(3)

	dead = true
	stepTo(r.w, 3, 20)
	if r.w.State != StateReloading {
		t.Fatalf("reload continuation fired on a dead owner: state %s", r.w.State)
	}
	if len(r.w.pending) != 0 {
		t.Fatalf("stale continuation should be dropped, not rescheduled")
	}
}

func TestStep_DropsStaleStateContinuations(t *testing.T) {
	r := newRig(100, 0.0)
	r.w.Enable(&Item{WeaponID: "MG", Health: 0.10}, 0)
	stepTo(r.w, 0, 3)
	r.w.Fire(3) // jams
	r.w.Unjam(4)

	// Leave Jamming before the unjam delay elapses: the pending Ready
	// transition must observe the changed state and abort.
	r.w.State = StateDisabled
	stepTo(r.w, 4, 12)
	if r.w.State != StateDisabled {
		t.Fatalf("stale unjam continuation applied: state %s", r.w.State)
	}
}
