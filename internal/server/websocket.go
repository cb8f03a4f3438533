package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"cardbattle/internal/battle"
	"cardbattle/internal/room"
)

type connectedPayload struct {
	ConnID string `json:"conn_id"`
}

type roomRefPayload struct {
	RoomID string `json:"room_id"`
}

type cardsReadyPayload struct {
	RoomID string        `json:"room_id"`
	Cards  []battle.Card `json:"cards"`
}

type cardSelectedPayload struct {
	RoomID string `json:"room_id"`
	CardID int    `json:"card_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		log.Printf("websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// Every connection gets a fresh transient identifier; reconnecting
	// clients re-bind their seat via rejoinRoom.
	connID := uuid.NewString()
	send := make(chan []byte, 64)
	s.hub.Register(connID, send)
	defer s.manager.Disconnect(connID)
	defer s.hub.Unregister(connID)

	s.hub.Send(connID, "connected", connectedPayload{ConnID: connID})

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for msg := range send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.Send(connID, "error", errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(connID, msg)
	}

	log.Printf("connection %s closed", connID)
}

func (s *Server) handleMessage(connID string, msg WSMessage) {
	var err error
	switch msg.Type {
	case "createRoom":
		_, err = s.manager.Create(connID)

	case "joinRoomRequest":
		var p roomRefPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = s.manager.Join(p.RoomID, connID)
		}

	case "rejoinRoom":
		var p roomRefPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = s.manager.Rejoin(p.RoomID, connID)
		}

	case "cardsReady":
		var p cardsReadyPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = s.manager.SubmitHand(p.RoomID, connID, p.Cards)
		}

	case "cardSelected":
		var p cardSelectedPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = s.manager.SelectCard(p.RoomID, connID, p.CardID)
		}

	case "requestRematch":
		var p roomRefPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = s.manager.Rematch(p.RoomID, connID)
		}

	case "getRoomStatus":
		var p roomRefPayload
		if err = decode(msg.Payload, &p); err == nil {
			var snap room.Snapshot
			if snap, err = s.manager.Snapshot(p.RoomID); err == nil {
				s.hub.Send(connID, "roomStatus", snap)
			}
		}

	default:
		s.hub.Send(connID, "error", errorPayload{Message: "unknown message type: " + msg.Type})
		return
	}

	if err != nil {
		s.hub.Send(connID, "error", errorPayload{Message: err.Error()})
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
