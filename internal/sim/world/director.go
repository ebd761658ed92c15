package world

import (
	"fmt"

	"steelrush.gg/internal/protocol"
)

// stepDirector spawns hostiles ahead of the field on a fixed cadence and
// culls anything the window has left behind.
func (w *World) stepDirector(ref float64) {
	if len(w.cats.Enemies.Order) > 0 &&
		w.tune.Director.SpawnEveryTicks > 0 &&
		w.tick%uint64(w.tune.Director.SpawnEveryTicks) == 0 &&
		len(w.enemies) < w.tune.Director.MaxEnemies &&
		w.anyAlive() {
		w.spawnEnemy(ref)
	}

	// Cull behind the window.
	kept := w.enemies[:0]
	for _, e := range w.enemies {
		min, max := e.bounds()
		if w.road.IsBehind(min, max) {
			w.pool.Release(e.Def.ID, e)
			continue
		}
		kept = append(kept, e)
	}
	w.enemies = kept
}

func (w *World) anyAlive() bool {
	for _, p := range w.players {
		if !p.Dead {
			return true
		}
	}
	return false
}

func (w *World) spawnEnemy(ref float64) {
	id := w.cats.Enemies.Order[w.rng.Intn(len(w.cats.Enemies.Order))]
	def := w.cats.Enemies.Defs[id]

	z := ref + w.tune.Director.SpawnLookahead
	b := w.road.QueryBounds(z)
	// Keep the whole body on the block surface.
	span := (b.MaxX - b.MinX) - def.Width
	x := b.MinX + def.Width/2
	if span > 0 {
		x += w.rng.Float64() * span
	}

	w.nextID++
	e := w.pool.Acquire(id).(*Enemy)
	*e = Enemy{
		ID:  fmt.Sprintf("E%d", w.nextID),
		Def: def,
		Pos: [2]float64{x, z},
		HP:  def.HP,
	}
	w.enemies = append(w.enemies, e)
}

// stepEnemies drives hostiles toward the nearest living player and applies
// contact damage on overlap.
func (w *World) stepEnemies() {
	for _, e := range w.enemies {
		target := w.nearestAlive(e.Pos[1])
		if target == nil {
			continue
		}
		dz := target.Pos[1] - e.Pos[1]
		step := e.Def.Speed / float64(w.cfg.TickRateHz)
		if dz > step {
			e.Pos[1] += step
		} else if dz < -step {
			e.Pos[1] -= step
		} else {
			e.Pos[1] = target.Pos[1]
		}

		if overlaps(e, target) {
			w.damagePlayer(target, w.tune.Director.ContactDamage, e.ID)
		}
	}
}

func (w *World) nearestAlive(z float64) *Player {
	var best *Player
	bestD := 0.0
	for _, p := range w.players {
		if p.Dead {
			continue
		}
		d := p.Pos[1] - z
		if d < 0 {
			d = -d
		}
		if best == nil || d < bestD {
			best, bestD = p, d
		}
	}
	return best
}

const vehicleHalfWidth = 1.0

func overlaps(e *Enemy, p *Player) bool {
	half := e.Def.Width/2 + vehicleHalfWidth
	dx := e.Pos[0] - p.Pos[0]
	dz := e.Pos[1] - p.Pos[1]
	if dx < 0 {
		dx = -dx
	}
	if dz < 0 {
		dz = -dz
	}
	return dx <= half && dz <= half
}

func (w *World) damagePlayer(p *Player, dmg int, sourceID string) {
	if p.Dead {
		return
	}
	p.HP -= dmg
	p.AddEvent(protocol.Event{"type": "DAMAGE", "amount": dmg, "source": sourceID})
	if p.HP <= 0 {
		p.HP = 0
		p.Dead = true
		p.Speed = 0
		p.Rack.ForceDisableAll(w.tick)
		p.AddEvent(protocol.Event{"type": "DESTROYED"})
	}
}

// stepProjectiles advances shots, resolves enemy hits against block-local
// bounds and recycles everything spent.
func (w *World) stepProjectiles() {
	step := w.tune.Projectile.Speed / float64(w.cfg.TickRateHz)

	kept := w.projectiles[:0]
	for _, pr := range w.projectiles {
		prevZ := pr.Pos[1]
		pr.Pos[1] += step

		if hit := w.hitEnemy(pr, prevZ); hit != nil {
			w.applyHit(pr, hit)
			w.pool.Release(projectilePrefab, pr)
			continue
		}
		min := [2]float64{pr.Pos[0], pr.Pos[1]}
		if pr.Pos[1]-pr.Origin >= w.tune.Projectile.MaxRange || w.road.IsBehind(min, min) {
			w.pool.Release(projectilePrefab, pr)
			continue
		}
		kept = append(kept, pr)
	}
	w.projectiles = kept
}

// hitEnemy sweeps the segment (prevZ, pos.z] so fast shots cannot tunnel
// through a body between ticks.
func (w *World) hitEnemy(pr *Projectile, prevZ float64) *Enemy {
	var best *Enemy
	for _, e := range w.enemies {
		half := e.Def.Width / 2
		dx := pr.Pos[0] - e.Pos[0]
		if dx < 0 {
			dx = -dx
		}
		if dx > half {
			continue
		}
		if e.Pos[1]+half < prevZ || e.Pos[1]-half > pr.Pos[1] {
			continue
		}
		if best == nil || e.Pos[1] < best.Pos[1] {
			best = e
		}
	}
	return best
}

func (w *World) applyHit(pr *Projectile, e *Enemy) {
	e.HP -= pr.Weapon.Damage
	owner := w.players[pr.OwnerID]
	if owner != nil {
		owner.AddEvent(protocol.Event{"type": "HIT", "target": e.ID, "damage": pr.Weapon.Damage})
	}
	if e.HP > 0 {
		return
	}
	if owner != nil {
		owner.AddEvent(protocol.Event{"type": "KILL", "target": e.ID, "kind": e.Def.ID})
	}
	for i, live := range w.enemies {
		if live == e {
			w.enemies = append(w.enemies[:i], w.enemies[i+1:]...)
			break
		}
	}
	w.pool.Release(e.Def.ID, e)
}
