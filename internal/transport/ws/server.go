// Package ws is the websocket transport: one connection per player, HELLO in,
// WELCOME plus catalogs out, then ACT frames inbound and OBS frames outbound.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"steelrush.gg/internal/protocol"
	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/world"
)

type Server struct {
	world *world.World
	cats  *catalogs.Catalogs
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cats:  cats,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == "" {
			return
		}
		s.log.Printf("ws: player %s connected from %s", playerID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}
			inbound := world.InboundAct{PlayerID: playerID, Tick: act.Tick}
			for _, inst := range act.Instants {
				inbound.Instants = append(inbound.Instants, world.InstantCommand{
					ID:    inst.ID,
					Type:  inst.Type,
					Slot:  inst.Slot,
					Speed: inst.Speed,
				})
			}
			s.world.Inbox() <- inbound
		}

		// Detach but keep the vehicle simulated; the resume token can claim
		// it on a later connection.
		s.log.Printf("ws: player %s disconnected", playerID)
		s.world.LeaveCh() <- world.LeaveRequest{PlayerID: playerID}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "driver"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	resumeToken := ""
	if hello.Auth != nil {
		resumeToken = strings.TrimSpace(hello.Auth.Token)
	}

	replyCh := make(chan world.JoinReply, 1)
	s.world.JoinCh() <- world.JoinRequest{
		PlayerName:  hello.PlayerName,
		ResumeToken: resumeToken,
		MaxQueue:    maxQ,
		Reply:       replyCh,
	}
	reply := <-replyCh
	if reply.Err != nil {
		closePolicy(conn, reply.Err.Error())
		return "", nil
	}

	attachErr := make(chan error, 1)
	s.world.AttachCh() <- world.AttachRequest{PlayerID: reply.PlayerID, Out: out, Reply: attachErr}
	if err := <-attachErr; err != nil {
		return "", nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        reply.PlayerID,
		ResumeToken:     reply.ResumeToken,
		WorldParams: protocol.WorldParams{
			TickRateHz:     s.world.TickRateHz(),
			StreamDistance: s.world.Tuning().Stream.Distance,
			Seed:           s.world.Seed(),
		},
		Catalogs: protocol.CatalogDigests{
			Blocks:  protocol.DigestRef{Digest: s.cats.Blocks.Digest, Count: len(s.cats.Blocks.Order)},
			Weapons: protocol.DigestRef{Digest: s.cats.Weapons.Digest, Count: len(s.cats.Weapons.Order)},
			Enemies: protocol.DigestRef{Digest: s.cats.Enemies.Digest, Count: len(s.cats.Enemies.Order)},
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	for _, c := range s.catalogMessages() {
		if err := writeJSON(conn, c); err != nil {
			return "", nil
		}
	}

	return reply.PlayerID, out
}

func (s *Server) catalogMessages() []protocol.CatalogMsg {
	mk := func(name, digest string, data interface{}) protocol.CatalogMsg {
		return protocol.CatalogMsg{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            name,
			Digest:          digest,
			Data:            data,
		}
	}
	return []protocol.CatalogMsg{
		mk("blocks", s.cats.Blocks.Digest, s.cats.Blocks.Defs),
		mk("weapons", s.cats.Weapons.Digest, s.cats.Weapons.Defs),
		mk("enemies", s.cats.Enemies.Digest, s.cats.Enemies.Defs),
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
