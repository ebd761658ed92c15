package world

import (
	"fmt"

	"steelrush.gg/internal/protocol"
)

// actStaleWindow is how many ticks behind the loop an ACT's tick stamp may
// lag before it is rejected as stale.
const actStaleWindow = 2

func errUnknownPlayer(id string) error {
	return fmt.Errorf("unknown player %q", id)
}

func (w *World) applyAct(act InboundAct) {
	p, ok := w.players[act.PlayerID]
	if !ok {
		w.logf("world %s: act for unknown player %s dropped", w.cfg.ID, act.PlayerID)
		return
	}
	if act.Tick+actStaleWindow < w.tick {
		for _, inst := range act.Instants {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrStale, "act tick too old"))
		}
		return
	}
	for _, inst := range act.Instants {
		w.applyInstant(p, inst)
	}
}

func (w *World) applyInstant(p *Player, inst InstantCommand) {
	if p.Dead && inst.Type != "THROTTLE" {
		p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrBlocked, "vehicle destroyed"))
		return
	}

	switch inst.Type {
	case "EQUIP":
		wp := p.Rack.Slot(inst.Slot)
		if wp == nil || inst.Slot >= len(p.Items) {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrInvalidTarget, "no such slot"))
			return
		}
		if !wp.Enable(p.Items[inst.Slot], w.tick) {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrBlocked, fmt.Sprintf("weapon is %s", wp.State)))
			return
		}
		w.recordAction(p, inst, "OK")
		p.AddEvent(actionResult(w.tick, inst.ID, true, "", ""))

	case "STOW":
		wp := p.Rack.Slot(inst.Slot)
		if wp == nil {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrInvalidTarget, "no such slot"))
			return
		}
		wp.ForceDisable(w.tick)
		w.recordAction(p, inst, "OK")
		p.AddEvent(actionResult(w.tick, inst.ID, true, "", ""))

	case "FIRE":
		wp := p.Rack.Slot(inst.Slot)
		if wp == nil {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrInvalidTarget, "no such slot"))
			return
		}
		if p.AmmoCount(wp.Def.AmmoType) <= 0 {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrNoResource, "out of ammo"))
			return
		}
		if !wp.Fire(w.tick) {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrBlocked, fmt.Sprintf("weapon is %s", wp.State)))
			return
		}
		w.recordAction(p, inst, "OK")
		p.AddEvent(actionResult(w.tick, inst.ID, true, "", ""))

	case "UNJAM":
		wp := p.Rack.Slot(inst.Slot)
		if wp == nil {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrInvalidTarget, "no such slot"))
			return
		}
		wp.Unjam(w.tick)
		w.recordAction(p, inst, "OK")
		p.AddEvent(actionResult(w.tick, inst.ID, true, "", ""))

	case "THROTTLE":
		if inst.Speed < 0 || inst.Speed > w.tune.Vehicle.MaxSpeed {
			p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrBadRequest, "speed out of range"))
			return
		}
		if !p.Dead {
			p.Speed = inst.Speed
		}
		w.recordAction(p, inst, "OK")
		p.AddEvent(actionResult(w.tick, inst.ID, true, "", ""))

	default:
		p.AddEvent(actionResult(w.tick, inst.ID, false, protocol.ErrBadRequest, "unknown instant type"))
	}
}

func (w *World) recordAction(p *Player, inst InstantCommand, result string) {
	if w.auditSink == nil {
		return
	}
	w.auditSink(AuditEntry{
		Tick:    w.tick,
		WorldID: w.cfg.ID,
		Action:  &RecordedAction{PlayerID: p.ID, ActionID: inst.ID, Type: inst.Type, Result: result},
	})
}

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
