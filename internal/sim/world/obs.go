package world

import (
	"encoding/json"
	"sort"

	"steelrush.gg/internal/protocol"
)

func (w *World) sendObservations() {
	for _, p := range w.players {
		if p.out == nil {
			// Nobody attached; events stay queued for the next attach.
			continue
		}
		obs := w.buildObs(p)
		b, err := json.Marshal(obs)
		if err != nil {
			w.logf("world %s: obs marshal for %s: %v", w.cfg.ID, p.ID, err)
			continue
		}
		sendLatest(p.out, b)
	}
}

func (w *World) buildObs(p *Player) protocol.ObsMsg {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick,
		PlayerID:        p.ID,
		Self: protocol.SelfObs{
			Pos:   p.Pos,
			Speed: p.Speed,
			HP:    p.HP,
			Dead:  p.Dead,
		},
		Ammo:   p.ammoStacks(),
		Events: p.TakeEvents(),
	}

	for _, wp := range p.Rack.Weapons {
		obs.Weapons = append(obs.Weapons, protocol.WeaponObs{
			Slot:     wp.Slot,
			WeaponID: wp.Def.ID,
			State:    string(wp.State),
			Health:   wp.Health,
		})
	}

	obs.Road.Distance = w.tune.Stream.Distance
	for _, b := range w.road.Blocks() {
		obs.Road.Blocks = append(obs.Road.Blocks, protocol.BlockObs{
			ID:        b.Def.ID,
			Start:     b.Start,
			End:       b.End,
			HalfWidth: b.Def.HalfWidth,
		})
	}

	obs.Entities = w.visibleEntities(p)
	return obs
}

// visibleEntities lists everything except the observer, sorted by id for a
// stable wire ordering.
func (w *World) visibleEntities(self *Player) []protocol.EntityObs {
	var out []protocol.EntityObs
	for _, p := range w.players {
		if p.ID == self.ID {
			continue
		}
		out = append(out, protocol.EntityObs{ID: p.ID, Type: "PLAYER", Pos: p.Pos, HP: p.HP})
	}
	for _, e := range w.enemies {
		out = append(out, protocol.EntityObs{ID: e.ID, Type: "ENEMY", Kind: e.Def.ID, Pos: e.Pos, HP: e.HP})
	}
	for _, pr := range w.projectiles {
		out = append(out, protocol.EntityObs{ID: pr.ID, Type: "PROJECTILE", Kind: pr.Weapon.ID, Pos: pr.Pos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
