package world

import (
	"testing"

	"steelrush.gg/internal/sim/weapons"
)

func TestSnapshot_RoundTripRestoresState(t *testing.T) {
	w := newTestWorld(t, 99)
	w.tune.Director.SpawnEveryTicks = 5
	p := join(t, w, "alice")
	equipReady(t, w, p)

	act(w, p, InstantCommand{ID: "t", Type: "THROTTLE", Speed: 5})
	act(w, p, InstantCommand{ID: "f", Type: "FIRE", Slot: 0})
	stepN(w, 60)

	raw, err := w.ExportSnapshot()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	wantDigest := w.stateDigest()

	w2 := newTestWorld(t, 99)
	w2.tune.Director.SpawnEveryTicks = 5
	if err := w2.ImportSnapshot(raw); err != nil {
		t.Fatalf("import: %v", err)
	}

	if w2.tick != w.tick {
		t.Fatalf("tick: %d want %d", w2.tick, w.tick)
	}
	if got := w2.stateDigest(); got != wantDigest {
		t.Fatalf("restored digest mismatch")
	}

	p2 := w2.players[p.ID]
	if p2 == nil {
		t.Fatalf("player missing after restore")
	}
	if p2.ResumeToken != p.ResumeToken {
		t.Fatalf("resume token not carried over")
	}
	if p2.AmmoCount("BULLET") != p.AmmoCount("BULLET") {
		t.Fatalf("ammo mismatch")
	}
	if got, want := p2.Rack.Slot(0).State, p.Rack.Slot(0).State; got != want {
		t.Fatalf("weapon state: %s want %s", got, want)
	}

	if len(w2.road.Blocks()) != len(w.road.Blocks()) {
		t.Fatalf("block window size mismatch")
	}
	for i, b := range w.road.Blocks() {
		b2 := w2.road.Blocks()[i]
		if b.Def.ID != b2.Def.ID || b.Start != b2.Start || b.End != b2.End {
			t.Fatalf("block %d mismatch after restore", i)
		}
	}
}

func TestSnapshot_ResumeContinuesTransientWeaponState(t *testing.T) {
	w := newTestWorld(t, 1)
	p := join(t, w, "alice")
	equipReady(t, w, p)

	// Snapshot mid-reload.
	act(w, p, InstantCommand{ID: "f", Type: "FIRE", Slot: 0})
	if p.Rack.Slot(0).State != weapons.StateReloading {
		t.Fatalf("setup: expected reloading")
	}
	raw, err := w.ExportSnapshot()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	w2 := newTestWorld(t, 1)
	if err := w2.ImportSnapshot(raw); err != nil {
		t.Fatalf("import: %v", err)
	}
	p2 := w2.players[p.ID]
	if p2.Rack.Slot(0).State != weapons.StateReloading {
		t.Fatalf("restore: expected reloading, got %s", p2.Rack.Slot(0).State)
	}

	// The reload delay is rescheduled from the restore tick.
	stepN(w2, 3)
	if got := p2.Rack.Slot(0).State; got != weapons.StateReady {
		t.Fatalf("weapon should finish reloading after resume, got %s", got)
	}
}

func TestSnapshot_RejectsUnknownCatalogEntries(t *testing.T) {
	w := newTestWorld(t, 5)
	join(t, w, "alice")
	raw, err := w.ExportSnapshot()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	w2 := newTestWorld(t, 5)
	delete(w2.cats.Blocks.Defs, "B100")
	if err := w2.ImportSnapshot(raw); err == nil {
		t.Fatalf("expected error for block missing from catalog")
	}
}
