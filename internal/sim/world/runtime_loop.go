package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tickDuration())
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest
	var pendingActs []InboundAct

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case req := <-w.joinCh:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attachCh:
			w.handleAttach(req)
		case req := <-w.leaveCh:
			pendingLeaves = append(pendingLeaves, req)
		case act := <-w.inbox:
			pendingActs = append(pendingActs, act)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActs = pendingActs[:0]
		}
	}
}

func (w *World) Stop() { close(w.stopCh) }

func (w *World) handleAttach(req AttachRequest) {
	p, ok := w.players[req.PlayerID]
	if !ok {
		req.Reply <- errUnknownPlayer(req.PlayerID)
		return
	}
	p.out = req.Out
	req.Reply <- nil
}

func (w *World) handleLeave(req LeaveRequest) {
	p, ok := w.players[req.PlayerID]
	if !ok {
		return
	}
	p.out = nil
	if req.Forget {
		delete(w.byToken, p.ResumeToken)
		delete(w.players, p.ID)
	}
}

// step runs one tick. Ordering is fixed: joins and leaves, weapon machines,
// queued commands, movement, window maintenance, director, enemies,
// projectiles, then observation/bookkeeping fan-out.
func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, acts []InboundAct) {
	// Only state-changing inputs are recorded for replay: fresh joins and
	// forget-leaves. Resumes and detaches touch transport wiring alone.
	var recJoins []RecordedJoin
	var recLeaves []string
	for _, req := range joins {
		reply := w.joinPlayer(req)
		if reply.Err == nil && req.ResumeToken == "" {
			recJoins = append(recJoins, RecordedJoin{PlayerID: reply.PlayerID, PlayerName: req.PlayerName})
		}
		req.Reply <- reply
	}
	for _, req := range leaves {
		if req.Forget {
			if _, ok := w.players[req.PlayerID]; ok {
				recLeaves = append(recLeaves, req.PlayerID)
			}
		}
		w.handleLeave(req)
	}

	for _, p := range w.players {
		p.Rack.Step(w.tick)
	}

	for _, act := range acts {
		w.applyAct(act)
	}

	// Movement along the travel axis.
	for _, p := range w.players {
		if p.Dead {
			continue
		}
		p.Pos[1] += p.Speed / float64(w.cfg.TickRateHz)
	}

	ref := w.referenceZ()
	w.road.UpdateWindow(ref)

	w.stepDirector(ref)
	w.stepEnemies()
	w.stepProjectiles()

	digest := w.stateDigest()
	w.sendObservations()

	if w.tickSink != nil {
		entry := TickLogEntry{
			Tick:    w.tick,
			WorldID: w.cfg.ID,
			Digest:  digest,
			Joins:   recJoins,
			Leaves:  recLeaves,
			Players: len(w.players),
			Enemies: len(w.enemies),
			Blocks:  len(w.road.Blocks()),
			HeadZ:   w.road.headStart(),
		}
		if len(acts) > 0 {
			// The loop reuses the acts backing array across ticks.
			entry.Acts = append([]InboundAct(nil), acts...)
		}
		w.tickSink(entry)
	}
	w.maybeSnapshot()

	w.tick++
}

// StepOnce advances the world one tick with the same ordering as the server
// loop. Tests and replays drive the world through this.
func (w *World) StepOnce(joins []JoinRequest, leaves []LeaveRequest, acts []InboundAct) (tick uint64, digest string) {
	tick = w.tick
	w.step(joins, leaves, acts)
	return tick, w.stateDigest()
}

func (w *World) maybeSnapshot() {
	if w.snapSink == nil || w.tune.SnapshotEveryTicks <= 0 {
		return
	}
	if w.tick == 0 || w.tick%uint64(w.tune.SnapshotEveryTicks) != 0 {
		return
	}
	payload, err := w.ExportSnapshot()
	if err != nil {
		w.logf("world %s: snapshot export failed at tick %d: %v", w.cfg.ID, w.tick, err)
		return
	}
	if _, err := w.snapSink.Save(w.cfg.ID, w.tick, payload); err != nil {
		w.logf("world %s: snapshot save failed at tick %d: %v", w.cfg.ID, w.tick, err)
	}
}

// sendLatest delivers without blocking the loop: if the channel is full the
// oldest frame is dropped to make room.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
