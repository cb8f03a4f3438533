package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RoomRow represents a room in the database.
type RoomRow struct {
	Code      string
	Status    string // "waiting", "ready", "battle_ready", "finished"
	CreatedAt time.Time
}

// BattleRow is one resolved round in the append-only battle log.
type BattleRow struct {
	RoomCode  string
	Round     int
	Winner    string // seat occupant id, empty for a draw
	Detail    string // BattleRecord JSON
	CreatedAt time.Time
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			code       TEXT PRIMARY KEY,
			status     TEXT NOT NULL DEFAULT 'waiting',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS battle_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			room_code   TEXT NOT NULL REFERENCES rooms(code),
			round       INTEGER NOT NULL,
			winner      TEXT NOT NULL DEFAULT '',
			detail_json TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// CreateRoom inserts a new room.
func (s *Store) CreateRoom(code string) error {
	_, err := s.db.Exec("INSERT INTO rooms (code, status) VALUES (?, 'waiting')", code)
	return err
}

// GetRoom retrieves a room by code.
func (s *Store) GetRoom(code string) (*RoomRow, error) {
	row := s.db.QueryRow("SELECT code, status, created_at FROM rooms WHERE code = ?", code)
	var rr RoomRow
	if err := row.Scan(&rr.Code, &rr.Status, &rr.CreatedAt); err != nil {
		return nil, err
	}
	return &rr, nil
}

// UpdateRoomStatus changes a room's status.
func (s *Store) UpdateRoomStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE rooms SET status = ? WHERE code = ?", status, code)
	return err
}

// ListRooms returns all rooms with the given status (or all if status is empty).
func (s *Store) ListRooms(status string) ([]RoomRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, status, created_at FROM rooms ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, status, created_at FROM rooms WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RoomRow
	for rows.Next() {
		var rr RoomRow
		if err := rows.Scan(&rr.Code, &rr.Status, &rr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rr)
	}
	return result, rows.Err()
}

// AppendBattle records one resolved round.
func (s *Store) AppendBattle(roomCode string, round int, winner, detailJSON string) error {
	_, err := s.db.Exec(
		"INSERT INTO battle_log (room_code, round, winner, detail_json) VALUES (?, ?, ?, ?)",
		roomCode, round, winner, detailJSON,
	)
	return err
}

// BattleLog returns a room's resolved rounds in play order.
func (s *Store) BattleLog(roomCode string) ([]BattleRow, error) {
	rows, err := s.db.Query(
		"SELECT room_code, round, winner, detail_json, created_at FROM battle_log WHERE room_code = ? ORDER BY id",
		roomCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []BattleRow
	for rows.Next() {
		var br BattleRow
		if err := rows.Scan(&br.RoomCode, &br.Round, &br.Winner, &br.Detail, &br.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, br)
	}
	return result, rows.Err()
}

// ClearBattleLog removes a room's battle log rows (rematch).
func (s *Store) ClearBattleLog(roomCode string) error {
	_, err := s.db.Exec("DELETE FROM battle_log WHERE room_code = ?", roomCode)
	return err
}

// DeleteRoom removes a room and its battle log.
func (s *Store) DeleteRoom(code string) error {
	if err := s.ClearBattleLog(code); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM rooms WHERE code = ?", code)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
