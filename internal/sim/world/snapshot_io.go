package world

import (
	"fmt"
	"sort"

	"steelrush.gg/internal/persistence/snapshot"
	"steelrush.gg/internal/sim/weapons"
)

const snapshotVersion = 1

// ExportSnapshot captures the full loop-owned state as encoded bytes. Called
// on the loop goroutine only.
func (w *World) ExportSnapshot() ([]byte, error) {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshotVersion,
			WorldID: w.cfg.ID,
			Tick:    w.tick,
		},
		Seed:           w.cfg.Seed,
		TickRate:       w.cfg.TickRateHz,
		StreamDistance: w.tune.Stream.Distance,
		LastRef:        w.lastRef,
		Counters:       snapshot.CountersV1{NextID: w.nextID},
	}

	for _, b := range w.road.Blocks() {
		snap.Blocks = append(snap.Blocks, snapshot.BlockV1{ID: b.Def.ID, Start: b.Start, End: b.End})
	}

	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := w.players[id]
		pv := snapshot.PlayerV1{
			ID:          p.ID,
			Name:        p.Name,
			ResumeToken: p.ResumeToken,
			Pos:         p.Pos,
			Speed:       p.Speed,
			HP:          p.HP,
			Dead:        p.Dead,
			Ammo:        map[string]int{},
		}
		for t, n := range p.ammo {
			pv.Ammo[t] = n
		}
		for _, it := range p.Items {
			pv.Items = append(pv.Items, snapshot.ItemV1{WeaponID: it.WeaponID, Health: it.Health})
		}
		for _, wp := range p.Rack.Weapons {
			pv.Weapons = append(pv.Weapons, snapshot.WeaponV1{
				Slot:   wp.Slot,
				State:  string(wp.State),
				Health: wp.Health,
			})
		}
		snap.Players = append(snap.Players, pv)
	}

	for _, e := range w.enemies {
		snap.Enemies = append(snap.Enemies, snapshot.EnemyV1{ID: e.ID, Kind: e.Def.ID, Pos: e.Pos, HP: e.HP})
	}
	for _, pr := range w.projectiles {
		snap.Projectiles = append(snap.Projectiles, snapshot.ProjectileV1{
			ID: pr.ID, OwnerID: pr.OwnerID, WeaponID: pr.Weapon.ID, Pos: pr.Pos, Origin: pr.Origin,
		})
	}

	return snapshot.Encode(snap)
}

// ImportSnapshot rebuilds loop state from encoded bytes. The world must be
// freshly constructed and not yet running.
func (w *World) ImportSnapshot(raw []byte) error {
	snap, err := snapshot.Decode(raw)
	if err != nil {
		return err
	}
	if snap.Header.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}

	w.tick = snap.Header.Tick
	w.lastRef = snap.LastRef
	w.nextID = snap.Counters.NextID

	blocks := make([]*Block, 0, len(snap.Blocks))
	for _, bv := range snap.Blocks {
		def, ok := w.cats.Blocks.Defs[bv.ID]
		if !ok {
			return fmt.Errorf("snapshot block %q missing from catalog", bv.ID)
		}
		b := w.pool.Acquire(bv.ID).(*Block)
		b.Def = def
		b.Start = bv.Start
		b.End = bv.End
		blocks = append(blocks, b)
	}
	w.road.restore(blocks)

	for i := range snap.Players {
		pv := snap.Players[i]
		p := newPlayer(pv.ID, pv.Name, w)
		p.ResumeToken = pv.ResumeToken
		p.Pos = pv.Pos
		p.Speed = pv.Speed
		p.HP = pv.HP
		p.Dead = pv.Dead
		p.ammo = map[string]int{}
		for t, n := range pv.Ammo {
			p.ammo[t] = n
		}
		for slot, iv := range pv.Items {
			if slot < len(p.Items) {
				p.Items[slot].WeaponID = iv.WeaponID
				p.Items[slot].Health = iv.Health
			}
		}
		for _, wv := range pv.Weapons {
			wp := p.Rack.Slot(wv.Slot)
			if wp == nil {
				continue
			}
			wp.State = weapons.State(wv.State)
			wp.Health = wv.Health
			if wp.State != weapons.StateDisabled && wv.Slot < len(p.Items) {
				wp.Item = p.Items[wv.Slot]
			}
			wp.Resume(w.tick)
		}
		w.players[p.ID] = p
		w.byToken[p.ResumeToken] = p
	}

	for _, ev := range snap.Enemies {
		def, ok := w.cats.Enemies.Defs[ev.Kind]
		if !ok {
			return fmt.Errorf("snapshot enemy kind %q missing from catalog", ev.Kind)
		}
		e := w.pool.Acquire(ev.Kind).(*Enemy)
		*e = Enemy{ID: ev.ID, Def: def, Pos: ev.Pos, HP: ev.HP}
		w.enemies = append(w.enemies, e)
	}
	for _, jv := range snap.Projectiles {
		def, ok := w.cats.Weapons.Defs[jv.WeaponID]
		if !ok {
			return fmt.Errorf("snapshot projectile weapon %q missing from catalog", jv.WeaponID)
		}
		pr := w.pool.Acquire(projectilePrefab).(*Projectile)
		*pr = Projectile{ID: jv.ID, OwnerID: jv.OwnerID, Weapon: def, Pos: jv.Pos, Origin: jv.Origin}
		w.projectiles = append(w.projectiles, pr)
	}
	return nil
}
