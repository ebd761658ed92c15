package world

import (
	"fmt"

	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/pool"
	"steelrush.gg/internal/sim/rng"
)

// Block is a pooled road segment. Blocks are strictly ordered and contiguous
// along the travel axis: each new block starts where the previous one ends.
type Block struct {
	Def   catalogs.BlockDef
	Start float64
	End   float64
}

func (b *Block) Contains(z float64) bool {
	return z >= b.Start && z < b.End
}

// Bounds is the axis-aligned footprint of a block: lateral extent plus the
// covered span of the travel axis.
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

func (b *Block) Bounds() Bounds {
	return Bounds{
		MinX: -b.Def.HalfWidth,
		MaxX: b.Def.HalfWidth,
		MinZ: b.Start,
		MaxZ: b.End,
	}
}

// BlockPicker selects the next block type to append. The default is uniform;
// tests and future history-aware policies supply their own.
type BlockPicker interface {
	Next(catalogSize int) int
}

type uniformPicker struct{ src rng.Source }

func (p uniformPicker) Next(n int) int { return p.src.Intn(n) }

func UniformPicker(src rng.Source) BlockPicker { return uniformPicker{src: src} }

// Streamer maintains the moving block window: a contiguous strip covering at
// least the configured distance, with blocks behind the reference returned to
// the pool.
type Streamer struct {
	order    []string
	defs     map[string]catalogs.BlockDef
	pool     *pool.Pool
	pick     BlockPicker
	distance float64
	logf     func(format string, args ...interface{})

	blocks  []*Block // oldest first
	covered float64
}

func NewStreamer(cat catalogs.BlockCatalog, p *pool.Pool, pick BlockPicker, distance float64, logf func(string, ...interface{})) (*Streamer, error) {
	if len(cat.Order) == 0 {
		return nil, fmt.Errorf("streamer: empty block catalog")
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	s := &Streamer{
		order:    cat.Order,
		defs:     cat.Defs,
		pool:     p,
		pick:     pick,
		distance: distance,
		logf:     logf,
	}
	s.Init()
	return s, nil
}

// Init releases any live blocks, resets covered length and lays exactly one
// block starting at the origin.
func (s *Streamer) Init() {
	for _, b := range s.blocks {
		s.pool.Release(b.Def.ID, b)
	}
	s.blocks = s.blocks[:0]
	s.covered = 0
	s.appendBlock()
}

// UpdateWindow runs the per-tick window maintenance: extend to the target
// distance, evict blocks fully behind the reference, then re-check coverage
// so the invariant (sum of live lengths >= distance) holds when it returns.
func (s *Streamer) UpdateWindow(ref float64) {
	s.extend()
	s.evict(ref)
	s.extend()
}

func (s *Streamer) extend() {
	for s.covered < s.distance {
		s.appendBlock()
	}
}

func (s *Streamer) evict(ref float64) {
	for len(s.blocks) > 0 && ref >= s.blocks[0].End {
		head := s.blocks[0]
		s.blocks = s.blocks[1:]
		s.covered -= head.Def.Length
		s.pool.Release(head.Def.ID, head)
	}
}

func (s *Streamer) appendBlock() {
	id := s.order[s.pick.Next(len(s.order))]
	def := s.defs[id]

	b := s.pool.Acquire(id).(*Block)
	b.Def = def
	if len(s.blocks) == 0 {
		b.Start = 0
	} else {
		b.Start = s.blocks[len(s.blocks)-1].End
	}
	b.End = b.Start + def.Length

	s.blocks = append(s.blocks, b)
	s.covered += def.Length
}

// QueryBounds returns the footprint of the block containing z, scanning
// head-first since queries cluster near the front of the window. A miss is
// degraded rather than fatal: the last scanned block's bounds are returned
// and a diagnostic is logged.
func (s *Streamer) QueryBounds(z float64) Bounds {
	var last *Block
	for _, b := range s.blocks {
		last = b
		if b.Contains(z) {
			return b.Bounds()
		}
	}
	s.logf("streamer: no block contains z=%.1f (window [%.1f,%.1f)); returning last scanned bounds", z, s.headStart(), s.tailEnd())
	if last == nil {
		return Bounds{}
	}
	return last.Bounds()
}

// IsBehind reports whether the box given by its min/max corners lies entirely
// behind the head block's near edge. Callers use it to cull objects that have
// fallen out of the window.
func (s *Streamer) IsBehind(min, max [2]float64) bool {
	return max[1] < s.headStart()
}

func (s *Streamer) headStart() float64 {
	if len(s.blocks) == 0 {
		return 0
	}
	return s.blocks[0].Start
}

func (s *Streamer) tailEnd() float64 {
	if len(s.blocks) == 0 {
		return 0
	}
	return s.blocks[len(s.blocks)-1].End
}

// Blocks returns the live window, oldest first. The slice is shared; callers
// must not mutate it.
func (s *Streamer) Blocks() []*Block { return s.blocks }

func (s *Streamer) Covered() float64 { return s.covered }

// restore rebuilds the window from a snapshot, bypassing Init.
func (s *Streamer) restore(blocks []*Block) {
	for _, b := range s.blocks {
		s.pool.Release(b.Def.ID, b)
	}
	s.blocks = blocks
	s.covered = 0
	for _, b := range blocks {
		s.covered += b.Def.Length
	}
}
