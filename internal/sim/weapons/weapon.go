// Package weapons implements the per-slot weapon lifecycle: timed
// enable/disable, firing with durability wear, probabilistic jamming and
// break-on-depletion. All waiting is modeled as delayed transitions scheduled
// against the world tick; a pending transition observes the current state (and
// the owner's liveness) before applying, so continuations scheduled for a
// state the weapon has since left are dropped instead of firing stale.
package weapons

import (
	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/rng"
)

type State string

const (
	StateDisabled  State = "DISABLED"
	StateEnabling  State = "ENABLING"
	StateReady     State = "READY"
	StateReloading State = "RELOADING"
	StateJamming   State = "JAMMING"
	StateBreaking  State = "BREAKING"
	StateDisabling State = "DISABLING"
)

// healthEpsilon absorbs float drift when durability wear is accumulated in
// 1/durability steps: a weapon rated for N shots breaks on exactly the Nth.
const healthEpsilon = 1e-9

// Item is the inventory-side record of a weapon. Health is loaded from it on
// Enable and written back exactly once, when the weapon settles in Disabled.
type Item struct {
	WeaponID string
	Health   float64 // 0..1 durability remaining
}

// Feedback receives fire-and-forget presentation cues (animation, audio,
// camera shake). The machine never waits on these beyond its own delays.
type Feedback interface {
	WeaponShown(w *Weapon)
	WeaponHidden(w *Weapon)
	AttackPlayed(w *Weapon)
	JamPlayed(w *Weapon)
	UnjamPlayed(w *Weapon)
	BreakPlayed(w *Weapon)
	CameraShake(strength float64)
}

// AmmoPool is the shared per-player ammo ledger. Delta is signed.
type AmmoPool interface {
	Add(ammoType string, delta int) int
}

// ProjectileSpawner performs the primary attack effect.
type ProjectileSpawner interface {
	Spawn(w *Weapon)
}

type Config struct {
	EquipTicks   uint64
	UnjamTicks   uint64
	DisableTicks uint64

	JamProbability     float64
	JamHealthThreshold float64
	NoJamAmmoTypes     map[string]bool
}

type Weapon struct {
	Slot   int
	Def    catalogs.WeaponDef
	Item   *Item
	Health float64
	State  State

	cfg   Config
	rng   rng.Source
	fb    Feedback
	ammo  AmmoPool
	spawn ProjectileSpawner
	logf  func(format string, args ...interface{})

	// OwnerDead reports whether the owning vehicle is destroyed; pending
	// transitions for a dead owner are dropped.
	OwnerDead func() bool

	pending      []pendingTransition
	disableAsked bool
}

type pendingTransition struct {
	dueTick uint64
	from    State
	apply   func(nowTick uint64)
}

func New(slot int, def catalogs.WeaponDef, cfg Config, src rng.Source, fb Feedback, ammo AmmoPool, spawn ProjectileSpawner, logf func(string, ...interface{})) *Weapon {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Weapon{
		Slot:  slot,
		Def:   def,
		State: StateDisabled,
		cfg:   cfg,
		rng:   src,
		fb:    fb,
		ammo:  ammo,
		spawn: spawn,
		logf:  logf,
	}
}

// Step advances pending transitions. Called once per tick before commands are
// applied, so a delay elapsing at tick T makes the weapon available at T.
func (w *Weapon) Step(nowTick uint64) {
	queue := w.pending
	w.pending = nil
	for _, p := range queue {
		if p.dueTick > nowTick {
			w.pending = append(w.pending, p)
			continue
		}
		if w.OwnerDead != nil && w.OwnerDead() {
			continue
		}
		if w.State != p.from {
			// Continuation scheduled for a state the weapon has left.
			continue
		}
		p.apply(nowTick)
	}

	if w.disableAsked && w.State == StateReady {
		w.beginDisable(nowTick)
	}
}

// Enable equips the weapon from an inventory item. Valid only from Disabled;
// invalid-state calls are logged and ignored.
func (w *Weapon) Enable(item *Item, nowTick uint64) bool {
	if w.State != StateDisabled {
		w.logf("weapon slot %d: enable ignored in state %s", w.Slot, w.State)
		return false
	}
	w.Item = item
	w.Health = item.Health
	w.fb.WeaponShown(w)
	w.State = StateEnabling
	w.after(nowTick, w.cfg.EquipTicks, StateEnabling, func(uint64) {
		w.State = StateReady
	})
	return true
}

// Fire attempts one shot. Valid only from Ready; invalid-state calls are
// logged and ignored. Durability wear applies before the break/jam decision.
func (w *Weapon) Fire(nowTick uint64) bool {
	if w.State != StateReady {
		w.logf("weapon slot %d: fire ignored in state %s", w.Slot, w.State)
		return false
	}

	w.Health -= 1 / float64(w.Def.Durability)

	if w.Health < healthEpsilon {
		w.Health = 0
		w.State = StateBreaking
		w.fb.BreakPlayed(w)
		w.beginDisable(nowTick)
		return true
	}

	if w.shouldJam() {
		w.State = StateJamming
		w.fb.AttackPlayed(w)
		w.fb.JamPlayed(w)
		return true
	}

	w.spawn.Spawn(w)
	w.ammo.Add(w.Def.AmmoType, -1)
	w.fb.AttackPlayed(w)
	w.State = StateReloading
	w.after(nowTick, uint64(w.Def.ReloadTicks), StateReloading, func(uint64) {
		w.State = StateReady
	})
	return true
}

func (w *Weapon) shouldJam() bool {
	if w.cfg.NoJamAmmoTypes[w.Def.AmmoType] {
		return false
	}
	if w.Health > w.cfg.JamHealthThreshold {
		return false
	}
	return w.rng.Float64() < w.cfg.JamProbability
}

// Unjam clears a jam after a fixed delay. The source machine carries no state
// guard here and neither do we; the transition lands on Ready regardless, but
// only if the state is unchanged when the delay elapses.
func (w *Weapon) Unjam(nowTick uint64) {
	w.fb.UnjamPlayed(w)
	w.fb.CameraShake(0.5)
	w.after(nowTick, w.cfg.UnjamTicks, w.State, func(uint64) {
		w.State = StateReady
	})
}

// ForceDisable requests disablement from any state: immediate from Ready,
// a no-op when already on the way down, otherwise latched until Ready.
func (w *Weapon) ForceDisable(nowTick uint64) {
	switch w.State {
	case StateDisabled, StateBreaking, StateDisabling:
		return
	case StateReady:
		w.beginDisable(nowTick)
	default:
		w.disableAsked = true
	}
}

// Resume reschedules the delayed leg of a transient state after a snapshot
// restore; pending queues are not persisted.
func (w *Weapon) Resume(nowTick uint64) {
	switch w.State {
	case StateEnabling:
		w.after(nowTick, w.cfg.EquipTicks, StateEnabling, func(uint64) {
			w.State = StateReady
		})
	case StateReloading:
		w.after(nowTick, uint64(w.Def.ReloadTicks), StateReloading, func(uint64) {
			w.State = StateReady
		})
	case StateBreaking:
		w.beginDisable(nowTick)
	case StateDisabling:
		w.scheduleDisabled(nowTick)
	}
}

// beginDisable is valid from Ready or Breaking. After the disable delay the
// remaining health is synced back onto the inventory item and the weapon's
// presence is deactivated.
func (w *Weapon) beginDisable(nowTick uint64) {
	if w.State != StateReady && w.State != StateBreaking {
		w.logf("weapon slot %d: disable ignored in state %s", w.Slot, w.State)
		return
	}
	w.State = StateDisabling
	w.scheduleDisabled(nowTick)
}

func (w *Weapon) scheduleDisabled(nowTick uint64) {
	w.after(nowTick, w.cfg.DisableTicks, StateDisabling, func(uint64) {
		if w.Item != nil {
			w.Item.Health = w.Health
		}
		w.fb.WeaponHidden(w)
		w.State = StateDisabled
		w.disableAsked = false
	})
}

func (w *Weapon) after(nowTick, delay uint64, from State, apply func(uint64)) {
	w.pending = append(w.pending, pendingTransition{
		dueTick: nowTick + delay,
		from:    from,
		apply:   apply,
	})
}
