package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"cardbattle/internal/battle"
	"cardbattle/internal/room"
	"cardbattle/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	mgr *room.Manager
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := NewHub()
	mgr := room.NewManager(store, hub)
	mgr.SetNextRoundDelay(20 * time.Millisecond)

	srv := New(mgr, hub)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// dialWS opens a connection and consumes the connected greeting.
func dialWS(t *testing.T, ctx context.Context, env *testEnv) (*websocket.Conn, string) {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, wsURL(env.ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	msg := readMsg(t, ctx, conn)
	if msg.Type != "connected" {
		t.Fatalf("first message type = %s, want connected", msg.Type)
	}
	var p connectedPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ConnID == "" {
		t.Fatalf("bad connected payload: %s", msg.Payload)
	}
	return conn, p.ConnID
}

func sendMsg(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMsg(t *testing.T, ctx context.Context, conn *websocket.Conn) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

// waitForMsg reads until a message of the wanted type arrives, skipping
// unrelated broadcasts.
func waitForMsg(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()
	for {
		msg := readMsg(t, ctx, conn)
		if msg.Type == msgType {
			return msg.Payload
		}
	}
}

// --- Game helpers ---

func uniformHand(attr battle.Attribute, power int) []battle.Card {
	return []battle.Card{
		{ID: 1, Name: "one", AttackPower: power, Attribute: attr},
		{ID: 2, Name: "two", AttackPower: power, Attribute: attr},
		{ID: 3, Name: "three", AttackPower: power, Attribute: attr},
	}
}

// waitForPlayerCount polls the diagnostics endpoint until the room reports
// the wanted seat count (used around disconnects, which land asynchronously).
func waitForPlayerCount(t *testing.T, env *testEnv, code string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := getSnapshot(t, env, code)
		if snap.PlayersCount == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d players", code, want)
}

func getSnapshot(t *testing.T, env *testEnv, code string) room.Snapshot {
	t.Helper()
	resp, err := http.Get(env.ts.URL + "/api/rooms/" + code)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get room status = %d", resp.StatusCode)
	}
	var snap room.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}
