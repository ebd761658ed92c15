package world

import (
	"fmt"

	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/weapons"
)

// Enemy is a pooled hostile vehicle ahead of the players.
type Enemy struct {
	ID  string
	Def catalogs.EnemyDef
	Pos [2]float64
	HP  int
}

func (e *Enemy) bounds() (min, max [2]float64) {
	half := e.Def.Width / 2
	min = [2]float64{e.Pos[0] - half, e.Pos[1] - half}
	max = [2]float64{e.Pos[0] + half, e.Pos[1] + half}
	return
}

const projectilePrefab = "PROJECTILE"

// Projectile is a pooled shot travelling forward along z.
type Projectile struct {
	ID      string
	OwnerID string
	Weapon  catalogs.WeaponDef
	Pos     [2]float64
	Origin  float64 // z at spawn, for range exhaustion
}

// worldSpawner satisfies the weapon spawner interface for one player; the
// shot inherits the firer's position with a lateral offset drawn from the
// weapon's accuracy.
type worldSpawner struct {
	w *World
	p *Player
}

const maxSpreadX = 4.0

func (s *worldSpawner) Spawn(wp *weapons.Weapon) {
	w, p := s.w, s.p

	w.nextID++
	pr := w.pool.Acquire(projectilePrefab).(*Projectile)
	spread := (w.rng.Float64()*2 - 1) * (1 - wp.Def.Accuracy) * maxSpreadX
	*pr = Projectile{
		ID:      fmt.Sprintf("J%d", w.nextID),
		OwnerID: p.ID,
		Weapon:  wp.Def,
		Pos:     [2]float64{p.Pos[0] + spread, p.Pos[1]},
		Origin:  p.Pos[1],
	}
	w.projectiles = append(w.projectiles, pr)
}
