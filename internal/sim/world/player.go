package world

import (
	"sort"

	"steelrush.gg/internal/protocol"
	"steelrush.gg/internal/sim/weapons"
)

const weaponSlots = 2

// Player is a connected (or resumable) vehicle. Pos is (x, z): x lateral on
// the road surface, z the travel axis.
type Player struct {
	ID          string
	Name        string
	ResumeToken string

	Pos   [2]float64
	Speed float64
	HP    int
	Dead  bool

	Items []*weapons.Item
	Rack  weapons.Rack
	ammo  map[string]int

	Events []protocol.Event
	out    chan []byte
}

func newPlayer(id, name string, w *World) *Player {
	p := &Player{
		ID:    id,
		Name:  name,
		Speed: w.tune.Vehicle.StartSpeed,
		HP:    w.tune.Vehicle.HP,
		ammo:  map[string]int{},
	}

	cfg := weapons.Config{
		EquipTicks:         uint64(w.tune.Weapons.EquipDelayTicks),
		UnjamTicks:         uint64(w.tune.Weapons.UnjamDelayTicks),
		DisableTicks:       uint64(w.tune.Weapons.DisableDelayTicks),
		JamProbability:     w.tune.Weapons.JamProbability,
		JamHealthThreshold: w.tune.Weapons.JamHealthThreshold,
		NoJamAmmoTypes:     map[string]bool{},
	}
	for _, t := range w.tune.Weapons.NoJamAmmoTypes {
		cfg.NoJamAmmoTypes[t] = true
	}

	// Starting loadout: the first catalog weapons, one per slot, full health
	// and a stack of their ammo type.
	for slot := 0; slot < weaponSlots && slot < len(w.cats.Weapons.Order); slot++ {
		def := w.cats.Weapons.Defs[w.cats.Weapons.Order[slot]]
		item := &weapons.Item{WeaponID: def.ID, Health: 1}
		p.Items = append(p.Items, item)
		p.ammo[def.AmmoType] += 60

		wp := weapons.New(slot, def, cfg, w.rng, &playerFeedback{p: p}, p, &worldSpawner{w: w, p: p}, w.logf)
		wp.OwnerDead = func() bool { return p.Dead }
		p.Rack.Weapons = append(p.Rack.Weapons, wp)
	}
	return p
}

// Add implements the weapons ammo pool. Counts never go negative.
func (p *Player) Add(ammoType string, delta int) int {
	n := p.ammo[ammoType] + delta
	if n < 0 {
		n = 0
	}
	p.ammo[ammoType] = n
	return n
}

func (p *Player) AmmoCount(ammoType string) int { return p.ammo[ammoType] }

func (p *Player) ammoStacks() []protocol.AmmoStack {
	types := make([]string, 0, len(p.ammo))
	for t := range p.ammo {
		types = append(types, t)
	}
	sort.Strings(types)
	stacks := make([]protocol.AmmoStack, 0, len(types))
	for _, t := range types {
		stacks = append(stacks, protocol.AmmoStack{Type: t, Count: p.ammo[t]})
	}
	return stacks
}

// maxPendingEvents bounds the queue while nobody is attached; a vehicle can
// sit detached for a long time before its resume token comes back.
const maxPendingEvents = 256

// AddEvent queues an event for the player's next observation. The oldest
// events are shed once the queue is full.
func (p *Player) AddEvent(ev protocol.Event) {
	p.Events = append(p.Events, ev)
	if len(p.Events) > maxPendingEvents {
		p.Events = p.Events[len(p.Events)-maxPendingEvents:]
	}
}

func (p *Player) TakeEvents() []protocol.Event {
	evs := p.Events
	p.Events = nil
	return evs
}

// playerFeedback turns weapon presentation cues into OBS events; the wire is
// the only presentation layer a headless server has.
type playerFeedback struct {
	p *Player
}

func (f *playerFeedback) fx(name string, w *weapons.Weapon) {
	f.p.AddEvent(protocol.Event{"type": "FX", "fx": name, "slot": w.Slot, "weapon_id": w.Def.ID})
}

func (f *playerFeedback) WeaponShown(w *weapons.Weapon)   { f.fx("WEAPON_SHOWN", w) }
func (f *playerFeedback) WeaponHidden(w *weapons.Weapon)  { f.fx("WEAPON_HIDDEN", w) }
func (f *playerFeedback) AttackPlayed(w *weapons.Weapon)  { f.fx("ATTACK", w) }
func (f *playerFeedback) JamPlayed(w *weapons.Weapon)     { f.fx("JAM", w) }
func (f *playerFeedback) UnjamPlayed(w *weapons.Weapon)   { f.fx("UNJAM", w) }
func (f *playerFeedback) BreakPlayed(w *weapons.Weapon)   { f.fx("BREAK", w) }

func (f *playerFeedback) CameraShake(strength float64) {
	f.p.AddEvent(protocol.Event{"type": "CAMERA_SHAKE", "strength": strength})
}
