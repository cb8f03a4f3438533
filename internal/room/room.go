package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"cardbattle/internal/battle"
)

// Status represents the room lifecycle.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusReady       Status = "ready"
	StatusBattleReady Status = "battle_ready"
	StatusFinished    Status = "finished"
)

const (
	// MaxRounds is the number of rounds in one game.
	MaxRounds = 3
	// WinThreshold ends the game early once a seat reaches it.
	WinThreshold = 2
	// NextRoundDelay is the default pause before announcing the next round.
	NextRoundDelay = 3 * time.Second
)

// Validation errors surfaced to the initiating client as error events.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyInRoom      = errors.New("already in room")
	ErrDuplicateSelection = errors.New("card already selected this round")
	ErrInvalidCard        = errors.New("card not in hand")
	ErrCardAlreadyUsed    = errors.New("card already used")
	ErrMissingHand        = errors.New("no hand submitted for this player")
	ErrHandInPlay         = errors.New("hand already in play for this game")
)

// Engine-to-client event names.
const (
	EventRoomCreated      = "roomCreated"
	EventRoomJoined       = "roomJoined"
	EventPlayerJoined     = "playerJoined"
	EventGameReady        = "gameReady"
	EventBothPlayersReady = "bothPlayersReady"
	EventOpponentSelected = "opponentCardSelected"
	EventBattleResult     = "battleResult"
	EventNextRound        = "nextRound"
	EventGameFinished     = "gameFinished"
	EventRematchStarted   = "rematchStarted"
)

// Notifier delivers engine events to a connected client. Implementations
// must not block; events for identifiers with no live connection are dropped.
type Notifier interface {
	Send(connID, event string, payload any)
}

// BattleRecord is one resolved round as appended to the room history.
type BattleRecord struct {
	Round     int                  `json:"round"`
	Cards     [2]battle.CardResult `json:"cards"`
	Winner    int                  `json:"winner"` // seat index, -1 for a draw
	WinnerID  string               `json:"winner_id,omitempty"`
	Scores    map[string]int       `json:"scores"`
	Timestamp time.Time            `json:"timestamp"`
}

// Room is one two-seat battle session. All mutating operations hold mu,
// so round resolution is atomic with respect to individual selections.
type Room struct {
	mu        sync.Mutex
	Code      string
	CreatedAt time.Time

	status    Status
	seats     [2]string // transient conn ids, "" = open
	hands     map[string][]*battle.Card
	handOrder []string // hand submission order, oldest first
	scores    map[string]int
	round     int
	selected  map[int]map[string]battle.Card
	history   []BattleRecord

	notifier  Notifier
	nextDelay time.Duration
	nextTimer *time.Timer
}

func newRoom(code, creator string, n Notifier, nextDelay time.Duration) *Room {
	r := &Room{
		Code:      code,
		CreatedAt: time.Now(),
		status:    StatusWaiting,
		hands:     make(map[string][]*battle.Card),
		scores:    make(map[string]int),
		round:     1,
		selected:  make(map[int]map[string]battle.Card),
		notifier:  n,
		nextDelay: nextDelay,
	}
	r.seats[0] = creator
	r.scores[creator] = 0
	return r
}

// Status returns the current lifecycle status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Join installs connID into the second seat.
func (r *Room) Join(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seatIndexLocked(connID) >= 0 {
		return ErrAlreadyInRoom
	}
	idx := r.openSeatLocked()
	if idx < 0 {
		return ErrRoomFull
	}
	r.seats[idx] = connID
	if _, ok := r.scores[connID]; !ok {
		r.scores[connID] = 0
	}

	n := r.seatCountLocked()
	r.notifier.Send(connID, EventRoomJoined, roomPayload{RoomID: r.Code, PlayersCount: n})
	for _, s := range r.seats {
		if s != "" && s != connID {
			r.notifier.Send(s, EventPlayerJoined, roomPayload{RoomID: r.Code, PlayersCount: n})
		}
	}
	// A join into a vacated seat mid-game must not rewind the status or
	// re-announce readiness.
	if n == 2 && r.status == StatusWaiting {
		r.status = StatusReady
		r.broadcastLocked(EventGameReady, roomPayload{RoomID: r.Code, PlayersCount: n})
	}
	return nil
}

// Vacate clears connID's seat when its connection drops. The hand, score,
// and any current-round selection stay keyed by the stale identifier so the
// replacement connection can adopt them.
func (r *Room) Vacate(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.seatIndexLocked(connID)
	if idx < 0 {
		return false
	}
	r.seats[idx] = ""
	return true
}

// Rejoin re-binds a changed connection identifier to its seat. A genuinely
// new identifier is seated if a slot is open; it still has to submit a hand.
func (r *Room) Rejoin(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reconcileLocked(connID) && r.seatIndexLocked(connID) < 0 {
		idx := r.openSeatLocked()
		if idx < 0 {
			return ErrRoomFull
		}
		r.seats[idx] = connID
		if _, ok := r.scores[connID]; !ok {
			r.scores[connID] = 0
		}
	}
	r.notifier.Send(connID, EventRoomJoined, roomPayload{RoomID: r.Code, PlayersCount: r.seatCountLocked()})
	return nil
}

// SubmitHand records connID's generated cards. Hands arrive from the card
// generation service already valued; the engine only validates shape.
// No orphan adoption happens here: the submitter is bringing its own cards,
// and adopting first would overwrite a disconnected player's hand.
func (r *Room) SubmitHand(connID string, cards []battle.Card) error {
	if err := battle.ValidateHand(cards); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Once battle has begun hands are locked in for the game; a re-submission
	// would reset the used flags and let burned cards be replayed. A seat
	// refilled mid-game recovers its cards through reconciliation instead.
	if r.status == StatusBattleReady || r.status == StatusFinished {
		return ErrHandInPlay
	}

	if r.seatIndexLocked(connID) < 0 {
		idx := r.openSeatLocked()
		if idx < 0 {
			return ErrRoomFull
		}
		r.seats[idx] = connID
	}

	hand := make([]*battle.Card, len(cards))
	for i, c := range cards {
		c.Used = false
		card := c
		hand[i] = &card
	}
	if _, existed := r.hands[connID]; !existed {
		r.handOrder = append(r.handOrder, connID)
	}
	r.hands[connID] = hand
	if _, ok := r.scores[connID]; !ok {
		r.scores[connID] = 0
	}

	if r.bothHandsLocked() && r.status != StatusBattleReady {
		r.status = StatusBattleReady
		r.broadcastLocked(EventBothPlayersReady, roomPayload{RoomID: r.Code, PlayersCount: r.seatCountLocked()})
	}
	return nil
}

// SelectCard records connID's choice for the current round and resolves the
// round once both seats have chosen. The returned record is non-nil only on
// resolution; finished reports whether the game ended with it.
func (r *Room) SelectCard(connID string, cardID int) (rec *BattleRecord, finished bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reconcileLocked(connID) {
		return nil, false, ErrMissingHand
	}
	if r.status != StatusBattleReady {
		return nil, false, fmt.Errorf("room %s is not mid-battle (status %s)", r.Code, r.status)
	}

	sel := r.selected[r.round]
	if sel == nil {
		sel = make(map[string]battle.Card, 2)
		r.selected[r.round] = sel
	}
	if _, dup := sel[connID]; dup {
		return nil, false, ErrDuplicateSelection
	}

	var chosen *battle.Card
	for _, c := range r.hands[connID] {
		if c.ID == cardID {
			chosen = c
			break
		}
	}
	if chosen == nil {
		return nil, false, ErrInvalidCard
	}
	if chosen.Used {
		return nil, false, ErrCardAlreadyUsed
	}

	sel[connID] = *chosen
	for _, s := range r.seats {
		if s != "" && s != connID {
			r.notifier.Send(s, EventOpponentSelected, roundPayload{Round: r.round})
		}
	}

	if len(sel) == 2 {
		record, done := r.resolveLocked(sel)
		return record, done, nil
	}
	return nil, false, nil
}

// resolveLocked runs combat for the current round, updates scores and
// history, and either finishes the game or schedules the next round.
// Selections are keyed by hand owner, which survives a seat being vacated
// between the two picks.
func (r *Room) resolveLocked(sel map[string]battle.Card) (*BattleRecord, bool) {
	ids := make([]string, 0, 2)
	for id := range sel {
		ids = append(ids, id)
	}
	idA, idB := ids[0], ids[1]
	if idA == r.seats[1] || idB == r.seats[0] {
		idA, idB = idB, idA
	}
	a, b := sel[idA], sel[idB]

	out := battle.Resolve(a, b)
	r.markUsedLocked(idA, a.ID)
	r.markUsedLocked(idB, b.ID)

	winnerID := ""
	if out.Winner >= 0 {
		winnerID = []string{idA, idB}[out.Winner]
		r.scores[winnerID]++
	}

	rec := BattleRecord{
		Round:     r.round,
		Cards:     out.Cards,
		Winner:    out.Winner,
		WinnerID:  winnerID,
		Scores:    r.scoreSnapshotLocked(),
		Timestamp: time.Now(),
	}
	r.history = append(r.history, rec)
	r.broadcastLocked(EventBattleResult, rec)

	if r.maxScoreLocked() >= WinThreshold || r.round >= MaxRounds {
		r.finishLocked(idA, idB)
		return &rec, true
	}

	// Advance immediately so stragglers for the resolved round land in a
	// fresh selection map; announce after the delay.
	r.round++
	target := r.round
	r.stopTimerLocked()
	r.nextTimer = time.AfterFunc(r.nextDelay, func() { r.announceRound(target) })
	return &rec, false
}

func (r *Room) finishLocked(idA, idB string) {
	r.status = StatusFinished
	r.stopTimerLocked()

	// Hands stay usable for a rematch.
	for _, hand := range r.hands {
		for _, c := range hand {
			c.Used = false
		}
	}

	winnerID := ""
	sA, sB := r.scores[idA], r.scores[idB]
	switch {
	case sA > sB:
		winnerID = idA
	case sB > sA:
		winnerID = idB
	}
	r.broadcastLocked(EventGameFinished, finishPayload{
		Winner:        winnerID,
		FinalScores:   r.scoreSnapshotLocked(),
		BattleHistory: r.history,
	})
}

// announceRound fires from the next-round timer. Stale timers (rematch,
// game over, a later round) are no-ops.
func (r *Room) announceRound(target int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusBattleReady || r.round != target {
		return
	}
	r.broadcastLocked(EventNextRound, roundPayload{Round: target})
}

// Rematch resets rounds, scores, selections, history, and card usage while
// preserving the room id, seats, and hand contents.
func (r *Room) Rematch(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconcileLocked(connID)
	if !r.bothHandsLocked() {
		return fmt.Errorf("room %s has no complete hands to rematch with", r.Code)
	}

	r.stopTimerLocked()
	r.status = StatusBattleReady
	r.round = 1
	r.selected = make(map[int]map[string]battle.Card)
	r.history = nil
	r.scores = make(map[string]int, 2)
	for _, s := range r.seats {
		if s != "" {
			r.scores[s] = 0
		}
	}
	for _, hand := range r.hands {
		for _, c := range hand {
			c.Used = false
		}
	}

	r.broadcastLocked(EventRematchStarted, rematchPayload{
		Scores:  r.scoreSnapshotLocked(),
		Players: r.playersLocked(),
	})
	return nil
}

// Snapshot is the diagnostic view served by getRoomStatus and the HTTP API.
type Snapshot struct {
	RoomID         string         `json:"room_id"`
	Status         Status         `json:"status"`
	Players        []string       `json:"players"`
	PlayersCount   int            `json:"players_count"`
	HandsSubmitted int            `json:"hands_submitted"`
	CurrentRound   int            `json:"current_round"`
	Scores         map[string]int `json:"scores"`
	BattleHistory  []BattleRecord `json:"battle_history"`
	CreatedAt      time.Time      `json:"created_at"`
	Age            string         `json:"age"`
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		RoomID:         r.Code,
		Status:         r.status,
		Players:        r.playersLocked(),
		PlayersCount:   r.seatCountLocked(),
		HandsSubmitted: len(r.hands),
		CurrentRound:   r.round,
		Scores:         r.scoreSnapshotLocked(),
		BattleHistory:  append([]BattleRecord(nil), r.history...),
		CreatedAt:      r.CreatedAt,
		Age:            humanize.Time(r.CreatedAt),
	}
}

// Close stops the next-round timer. Called by the manager on eviction.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
}

// --- locked helpers ---

func (r *Room) seatIndexLocked(connID string) int {
	for i, s := range r.seats {
		if s == connID {
			return i
		}
	}
	return -1
}

func (r *Room) openSeatLocked() int {
	for i, s := range r.seats {
		if s == "" {
			return i
		}
	}
	return -1
}

func (r *Room) seatCountLocked() int {
	n := 0
	for _, s := range r.seats {
		if s != "" {
			n++
		}
	}
	return n
}

func (r *Room) playersLocked() []string {
	players := make([]string, 0, 2)
	for _, s := range r.seats {
		if s != "" {
			players = append(players, s)
		}
	}
	return players
}

func (r *Room) bothHandsLocked() bool {
	if r.seatCountLocked() != 2 {
		return false
	}
	for _, s := range r.seats {
		if _, ok := r.hands[s]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) markUsedLocked(connID string, cardID int) {
	for _, c := range r.hands[connID] {
		if c.ID == cardID {
			c.Used = true
			return
		}
	}
}

func (r *Room) scoreSnapshotLocked() map[string]int {
	snap := make(map[string]int, len(r.scores))
	for id, s := range r.scores {
		snap[id] = s
	}
	return snap
}

func (r *Room) maxScoreLocked() int {
	max := 0
	for _, s := range r.scores {
		if s > max {
			max = s
		}
	}
	return max
}

func (r *Room) stopTimerLocked() {
	if r.nextTimer != nil {
		r.nextTimer.Stop()
		r.nextTimer = nil
	}
}

func (r *Room) broadcastLocked(event string, payload any) {
	for _, s := range r.seats {
		if s != "" {
			r.notifier.Send(s, event, payload)
		}
	}
}

// --- event payloads ---

type roomPayload struct {
	RoomID       string `json:"room_id"`
	PlayersCount int    `json:"players_count"`
}

type roundPayload struct {
	Round int `json:"round"`
}

type finishPayload struct {
	Winner        string         `json:"winner"`
	FinalScores   map[string]int `json:"final_scores"`
	BattleHistory []BattleRecord `json:"battle_history"`
}

type rematchPayload struct {
	Scores  map[string]int `json:"scores"`
	Players []string       `json:"players"`
}
