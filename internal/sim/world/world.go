// Package world owns the simulation state and the tick loop. All mutation
// happens on the loop goroutine; transports talk to it through the join,
// leave and inbox channels and receive per-tick observations on their own
// outbound channels.
package world

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/pool"
	"steelrush.gg/internal/sim/rng"
	"steelrush.gg/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	Seed       int64
	TickRateHz int
}

// JoinRequest is sent by a transport when a client completes its handshake.
// Reply carries the outcome back to the transport goroutine.
type JoinRequest struct {
	PlayerName  string
	ResumeToken string
	MaxQueue    int
	Reply       chan JoinReply
}

type JoinReply struct {
	PlayerID    string
	ResumeToken string
	Err         error
}

// AttachRequest binds an observation channel to an already-joined player.
type AttachRequest struct {
	PlayerID string
	Out      chan []byte
	Reply    chan error
}

type LeaveRequest struct {
	PlayerID string
	// Forget drops the player entirely instead of keeping the vehicle
	// simulated for a later resume.
	Forget bool
}

// InboundAct is a decoded ACT message plus the player it arrived for.
type InboundAct struct {
	PlayerID string           `json:"player_id"`
	Tick     uint64           `json:"tick"`
	Instants []InstantCommand `json:"instants,omitempty"`
}

type InstantCommand struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Slot  int     `json:"slot,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// TickLogEntry is the per-tick record handed to the tick sink. Joins, Leaves
// and Acts are the tick's state-changing inputs; replaying them through
// StepOnce from the same starting state reproduces Digest.
type TickLogEntry struct {
	Tick    uint64         `json:"tick"`
	WorldID string         `json:"world_id"`
	Digest  string         `json:"digest"`
	Joins   []RecordedJoin `json:"joins,omitempty"`
	Leaves  []string       `json:"leaves,omitempty"`
	Acts    []InboundAct   `json:"acts,omitempty"`
	Players int            `json:"players"`
	Enemies int            `json:"enemies"`
	Blocks  int            `json:"blocks"`
	HeadZ   float64        `json:"head_z"`
}

// AuditEntry records joins and accepted instants for the audit sink.
type AuditEntry struct {
	Tick    uint64          `json:"tick"`
	WorldID string          `json:"world_id"`
	Join    *RecordedJoin   `json:"join,omitempty"`
	Action  *RecordedAction `json:"action,omitempty"`
}

type RecordedJoin struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Resumed    bool   `json:"resumed"`
}

type RecordedAction struct {
	PlayerID string `json:"player_id"`
	ActionID string `json:"action_id"`
	Type     string `json:"type"`
	Result   string `json:"result"` // "OK" or an error code
}

// SnapshotSink persists a snapshot and reports where it landed.
type SnapshotSink interface {
	Save(worldID string, tick uint64, payload []byte) (path string, err error)
}

type World struct {
	cfg  WorldConfig
	tune tuning.Tuning
	cats *catalogs.Catalogs

	tick uint64
	rng  rng.Source
	pool *pool.Pool
	road *Streamer

	players map[string]*Player
	byToken map[string]*Player

	enemies     []*Enemy
	projectiles []*Projectile
	nextID      uint64

	// lastRef carries the window reference across ticks where no player is
	// alive, so maintenance degrades instead of snapping back to origin.
	lastRef float64

	joinCh   chan JoinRequest
	attachCh chan AttachRequest
	leaveCh  chan LeaveRequest
	inbox    chan InboundAct
	stopCh   chan struct{}

	tickSink  func(TickLogEntry)
	auditSink func(AuditEntry)
	snapSink  SnapshotSink

	logf func(format string, args ...interface{})
}

func New(cfg WorldConfig, tune tuning.Tuning, cats *catalogs.Catalogs) (*World, error) {
	if len(cats.Blocks.Order) == 0 {
		return nil, fmt.Errorf("world %s: block catalog is empty", cfg.ID)
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = tune.TickRateHz
	}

	w := &World{
		cfg:     cfg,
		tune:    tune,
		cats:    cats,
		rng:     rng.New(cfg.Seed),
		players: map[string]*Player{},
		byToken: map[string]*Player{},

		joinCh:   make(chan JoinRequest, 8),
		attachCh: make(chan AttachRequest, 8),
		leaveCh:  make(chan LeaveRequest, 8),
		inbox:    make(chan InboundAct, 256),
		stopCh:   make(chan struct{}),

		logf: log.Printf,
	}
	w.pool = pool.New(w.makePrefab)

	road, err := NewStreamer(cats.Blocks, w.pool, UniformPicker(w.rng), tune.Stream.Distance, w.logf)
	if err != nil {
		return nil, err
	}
	w.road = road
	return w, nil
}

// makePrefab is the pool factory. Block and enemy prefab ids come straight
// from the catalogs; everything else is a projectile.
func (w *World) makePrefab(prefabID string) interface{} {
	if _, ok := w.cats.Blocks.Defs[prefabID]; ok {
		return &Block{}
	}
	if _, ok := w.cats.Enemies.Defs[prefabID]; ok {
		return &Enemy{}
	}
	return &Projectile{}
}

func (w *World) ID() string            { return w.cfg.ID }
func (w *World) Tick() uint64          { return w.tick }
func (w *World) Seed() int64           { return w.cfg.Seed }
func (w *World) TickRateHz() int       { return w.cfg.TickRateHz }
func (w *World) Road() *Streamer       { return w.road }
func (w *World) Tuning() tuning.Tuning { return w.tune }

func (w *World) SetTickSink(fn func(TickLogEntry))   { w.tickSink = fn }
func (w *World) SetAuditSink(fn func(AuditEntry))    { w.auditSink = fn }
func (w *World) SetSnapshotSink(sink SnapshotSink)   { w.snapSink = sink }
func (w *World) SetLogf(fn func(string, ...interface{})) {
	if fn != nil {
		w.logf = fn
	}
}

func (w *World) JoinCh() chan<- JoinRequest     { return w.joinCh }
func (w *World) AttachCh() chan<- AttachRequest { return w.attachCh }
func (w *World) LeaveCh() chan<- LeaveRequest   { return w.leaveCh }
func (w *World) Inbox() chan<- InboundAct       { return w.inbox }

// joinPlayer runs on the loop goroutine. A matching resume token reattaches
// the existing vehicle; otherwise a fresh one is provisioned at the rear of
// the live field.
func (w *World) joinPlayer(req JoinRequest) JoinReply {
	if req.ResumeToken != "" {
		if p, ok := w.byToken[req.ResumeToken]; ok {
			w.recordJoin(p, true)
			return JoinReply{PlayerID: p.ID, ResumeToken: p.ResumeToken}
		}
		return JoinReply{Err: fmt.Errorf("unknown resume token")}
	}

	w.nextID++
	p := newPlayer(fmt.Sprintf("P%d", w.nextID), req.PlayerName, w)
	p.ResumeToken = uuid.NewString()
	p.Pos[1] = w.referenceZ()
	w.players[p.ID] = p
	w.byToken[p.ResumeToken] = p
	w.recordJoin(p, false)
	return JoinReply{PlayerID: p.ID, ResumeToken: p.ResumeToken}
}

func (w *World) recordJoin(p *Player, resumed bool) {
	if w.auditSink == nil {
		return
	}
	w.auditSink(AuditEntry{
		Tick:    w.tick,
		WorldID: w.cfg.ID,
		Join:    &RecordedJoin{PlayerID: p.ID, PlayerName: p.Name, Resumed: resumed},
	})
}

// referenceZ is the window reference: the rearmost living player, so the
// window never evicts road out from under anyone. With nobody alive the last
// known reference carries over.
func (w *World) referenceZ() float64 {
	ref := 0.0
	found := false
	for _, p := range w.players {
		if p.Dead {
			continue
		}
		if !found || p.Pos[1] < ref {
			ref = p.Pos[1]
			found = true
		}
	}
	if !found {
		return w.lastRef
	}
	w.lastRef = ref
	return ref
}

func (w *World) tickDuration() time.Duration {
	return time.Second / time.Duration(w.cfg.TickRateHz)
}
