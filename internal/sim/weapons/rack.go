package weapons

// Rack holds a vehicle's weapon slots and fans the per-tick step out to them.
// Weapons are built once per slot at load time and re-initialized from their
// inventory item on each Enable; they are never destroyed mid-session.
type Rack struct {
	Weapons []*Weapon
}

func (r *Rack) Slot(slot int) *Weapon {
	if slot < 0 || slot >= len(r.Weapons) {
		return nil
	}
	return r.Weapons[slot]
}

func (r *Rack) Step(nowTick uint64) {
	for _, w := range r.Weapons {
		w.Step(nowTick)
	}
}

// ForceDisableAll is used on vehicle teardown.
func (r *Rack) ForceDisableAll(nowTick uint64) {
	for _, w := range r.Weapons {
		w.ForceDisable(nowTick)
	}
}
