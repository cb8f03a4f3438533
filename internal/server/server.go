package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardbattle/internal/battle"
	"cardbattle/internal/room"
)

// Server is the HTTP server: diagnostics over REST, the game itself over
// the WebSocket endpoint.
type Server struct {
	mux     *http.ServeMux
	manager *room.Manager
	hub     *Hub
}

// New creates a server with all routes.
func New(manager *room.Manager, hub *Hub) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		manager: manager,
		hub:     hub,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/attributes", s.handleAttributes)
	s.mux.HandleFunc("GET /api/rooms/{code}", s.handleGetRoom)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type attributesResponse struct {
	Attributes  []battle.AttributeInfo `json:"attributes"`
	Multipliers map[string]float64     `json:"multipliers"`
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, attributesResponse{
		Attributes: battle.Attributes(),
		Multipliers: map[string]float64{
			string(battle.Advantage):    battle.AdvantageMultiplier,
			string(battle.Neutral):      1.0,
			string(battle.Disadvantage): 1.0,
		},
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	snap, err := s.manager.Snapshot(code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
