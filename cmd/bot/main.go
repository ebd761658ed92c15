package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"steelrush.gg/internal/protocol"
)

// A tiny scripted driver: full throttle, keep slot 0 equipped, fire at the
// nearest enemy ahead and unjam when the weapon jams. Useful for smoke
// testing a running server.
func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "player name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, log: logger}
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.playerID = w.PlayerID
			logger.Printf("WELCOME player_id=%s tick_rate=%d seed=%d", w.PlayerID, w.WorldParams.TickRateHz, w.WorldParams.Seed)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			b.handleObs(&obs)
		}
	}
}

type bot struct {
	conn     *websocket.Conn
	log      *log.Logger
	playerID string

	throttled bool
	nextAct   int
}

func (b *bot) handleObs(obs *protocol.ObsMsg) {
	if obs.Self.Dead {
		return
	}

	var instants []protocol.InstantReq
	add := func(typ string, slot int, speed float64) {
		b.nextAct++
		instants = append(instants, protocol.InstantReq{
			ID:    fmt.Sprintf("%s_%d", typ, b.nextAct),
			Type:  typ,
			Slot:  slot,
			Speed: speed,
		})
	}

	if !b.throttled {
		add("THROTTLE", 0, 5)
		b.throttled = true
	}

	if len(obs.Weapons) > 0 {
		switch obs.Weapons[0].State {
		case "DISABLED":
			add("EQUIP", 0, 0)
		case "JAMMING":
			add("UNJAM", 0, 0)
		case "READY":
			if enemyAhead(obs) {
				add("FIRE", 0, 0)
			}
		}
	}

	for _, ev := range obs.Events {
		if ev["type"] == "ACTION_RESULT" && ev["ok"] == false {
			b.log.Printf("tick %d: %v failed: %v", obs.Tick, ev["ref"], ev["code"])
		}
	}

	if len(instants) == 0 {
		return
	}
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		PlayerID:        b.playerID,
		Instants:        instants,
	}
	if err := b.conn.WriteJSON(act); err != nil {
		b.log.Printf("send ACT: %v", err)
	}
}

func enemyAhead(obs *protocol.ObsMsg) bool {
	for _, e := range obs.Entities {
		if e.Type == "ENEMY" && e.Pos[1] > obs.Self.Pos[1] {
			return true
		}
	}
	return false
}
