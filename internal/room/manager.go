package room

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cardbattle/internal/battle"
	"cardbattle/internal/storage"
)

// Manager owns all active rooms. Room codes are short shareable strings,
// compared case-insensitively.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	store     *storage.Store
	notifier  Notifier
	nextDelay time.Duration
}

// NewManager creates a room manager.
func NewManager(store *storage.Store, notifier Notifier) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		store:     store,
		notifier:  notifier,
		nextDelay: NextRoundDelay,
	}
}

// SetNextRoundDelay overrides the next-round announcement delay. Tests use
// a short delay; production keeps the default.
func (m *Manager) SetNextRoundDelay(d time.Duration) {
	m.nextDelay = d
}

// Create makes a new room with connID in seat 0 and persists the row.
func (m *Manager) Create(connID string) (*Room, error) {
	code := generateCode()
	if err := m.store.CreateRoom(code); err != nil {
		return nil, fmt.Errorf("persist room: %w", err)
	}
	r := newRoom(code, connID, m.notifier, m.nextDelay)
	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()

	m.notifier.Send(connID, EventRoomCreated, roomPayload{RoomID: code, PlayersCount: 1})
	return r, nil
}

// Get returns a room by code.
func (m *Manager) Get(code string) (*Room, bool) {
	code = normalizeCode(code)
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// Join seats connID in the room's open slot.
func (m *Manager) Join(code, connID string) error {
	r, ok := m.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.Join(connID); err != nil {
		return err
	}
	m.persistStatus(r)
	return nil
}

// Rejoin runs identity reconciliation for a changed connection identifier.
func (m *Manager) Rejoin(code, connID string) error {
	r, ok := m.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	return r.Rejoin(connID)
}

// SubmitHand stores connID's generated cards in the room.
func (m *Manager) SubmitHand(code, connID string, cards []battle.Card) error {
	r, ok := m.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.SubmitHand(connID, cards); err != nil {
		return err
	}
	m.persistStatus(r)
	return nil
}

// SelectCard records a round selection, resolving the round when it is the
// second one. Resolved rounds are appended to the battle log.
func (m *Manager) SelectCard(code, connID string, cardID int) error {
	r, ok := m.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	rec, finished, err := r.SelectCard(connID, cardID)
	if err != nil {
		return err
	}
	if rec != nil {
		detail, err := json.Marshal(rec)
		if err == nil {
			err = m.store.AppendBattle(r.Code, rec.Round, rec.WinnerID, string(detail))
		}
		if err != nil {
			log.Printf("append battle log for room %s: %v", r.Code, err)
		}
	}
	if finished {
		m.persistStatus(r)
	}
	return nil
}

// Rematch resets the room for another game with the same hands.
func (m *Manager) Rematch(code, connID string) error {
	r, ok := m.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.Rematch(connID); err != nil {
		return err
	}
	if err := m.store.ClearBattleLog(r.Code); err != nil {
		log.Printf("clear battle log for room %s: %v", r.Code, err)
	}
	m.persistStatus(r)
	return nil
}

// Snapshot returns the diagnostic view of a room.
func (m *Manager) Snapshot(code string) (Snapshot, error) {
	r, ok := m.Get(code)
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}
	return r.Snapshot(), nil
}

// Disconnect vacates connID's seat in whichever room holds it. Hands and
// scores stay behind for identity reconciliation when the client returns
// with a fresh identifier.
func (m *Manager) Disconnect(connID string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for code, r := range m.rooms {
		if r.Vacate(connID) {
			log.Printf("room %s: seat vacated by %s", code, connID)
		}
	}
}

func (m *Manager) persistStatus(r *Room) {
	if err := m.store.UpdateRoomStatus(r.Code, string(r.Status())); err != nil {
		log.Printf("update status for room %s: %v", r.Code, err)
	}
}

// CleanupLoop evicts idle rooms periodically. Rooms have no client-facing
// close operation; this is the supervisory reaper.
func (m *Manager) CleanupLoop(interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		m.cleanup(maxAge)
	}
}

func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for code, r := range m.rooms {
		if now.Sub(r.CreatedAt) <= maxAge {
			continue
		}
		log.Printf("cleaning up room %s", code)
		r.Close()
		if err := m.store.DeleteRoom(code); err != nil {
			log.Printf("delete room %s: %v", code, err)
		}
		delete(m.rooms, code)
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
