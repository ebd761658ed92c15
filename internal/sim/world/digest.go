package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

// stateDigest is a deterministic hash over the whole world state, iterated in
// sorted key order. Two worlds stepped with the same seed and inputs must
// produce identical digests tick for tick.
func (w *World) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, w.tick)
	writeU64(h, &tmp, uint64(w.cfg.Seed))
	writeF64(h, &tmp, w.lastRef)

	for _, b := range w.road.Blocks() {
		h.Write([]byte(b.Def.ID))
		writeF64(h, &tmp, b.Start)
		writeF64(h, &tmp, b.End)
	}

	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := w.players[id]
		h.Write([]byte(p.ID))
		writeF64(h, &tmp, p.Pos[0])
		writeF64(h, &tmp, p.Pos[1])
		writeF64(h, &tmp, p.Speed)
		writeU64(h, &tmp, uint64(p.HP))
		if p.Dead {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		for _, wp := range p.Rack.Weapons {
			h.Write([]byte(wp.State))
			writeF64(h, &tmp, wp.Health)
		}
		for _, st := range p.ammoStacks() {
			h.Write([]byte(st.Type))
			writeU64(h, &tmp, uint64(st.Count))
		}
	}

	for _, e := range w.enemies {
		h.Write([]byte(e.ID))
		h.Write([]byte(e.Def.ID))
		writeF64(h, &tmp, e.Pos[0])
		writeF64(h, &tmp, e.Pos[1])
		writeU64(h, &tmp, uint64(e.HP))
	}
	for _, pr := range w.projectiles {
		h.Write([]byte(pr.ID))
		writeF64(h, &tmp, pr.Pos[0])
		writeF64(h, &tmp, pr.Pos[1])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}
