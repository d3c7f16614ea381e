// Package persist is an optional, disabled-by-default SQLite-backed
// snapshot log. spec.md §1 explicitly excludes persistent storage and
// event sourcing from the runtime's own responsibilities — agent and
// instance state lives entirely in memory — but mentions a persistence
// extension point for host programs that want durability anyway. This
// package is that extension point: it records agent snapshots on demand,
// and nothing in internal/server or internal/instance calls it unless a
// host program explicitly wires a Store in.
//
// Grounded on internal/store/store.go's Open/schema/migrate shape
// (same sql.Open("sqlite", ...) DSN style and WAL pragma), trimmed down
// from Cortex's many tables to the single append-only snapshots table
// this runtime actually needs.
package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed append-only log of agent snapshots.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id    TEXT NOT NULL,
	module      TEXT NOT NULL,
	state_json  TEXT NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_snapshots_agent_id ON snapshots(agent_id);
`

// Open creates or opens a SQLite database at dbPath and ensures the
// snapshots table exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSnapshot appends one row for agentID's current state. state is
// marshaled as JSON; a non-marshalable value is a caller bug and comes
// back as an error rather than being silently dropped.
func (s *Store) RecordSnapshot(agentID, module string, state map[string]any) (int64, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("persist: marshal state for %s: %w", agentID, err)
	}
	res, err := s.db.Exec(
		`INSERT INTO snapshots (agent_id, module, state_json) VALUES (?, ?, ?)`,
		agentID, module, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("persist: insert snapshot for %s: %w", agentID, err)
	}
	return res.LastInsertId()
}

// Snapshot is one recorded row.
type Snapshot struct {
	ID         int64
	AgentID    string
	Module     string
	State      map[string]any
	RecordedAt time.Time
}

// History returns every recorded snapshot for agentID, oldest first.
func (s *Store) History(agentID string) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, agent_id, module, state_json, recorded_at FROM snapshots WHERE agent_id = ? ORDER BY id ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("persist: query history for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			row      Snapshot
			stateRaw string
		)
		if err := rows.Scan(&row.ID, &row.AgentID, &row.Module, &stateRaw, &row.RecordedAt); err != nil {
			return nil, fmt.Errorf("persist: scan snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(stateRaw), &row.State); err != nil {
			return nil, fmt.Errorf("persist: unmarshal state for snapshot %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Latest returns the most recently recorded snapshot for agentID, if any.
func (s *Store) Latest(agentID string) (Snapshot, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, agent_id, module, state_json, recorded_at FROM snapshots WHERE agent_id = ? ORDER BY id DESC LIMIT 1`,
		agentID,
	)
	var (
		snap     Snapshot
		stateRaw string
	)
	if err := row.Scan(&snap.ID, &snap.AgentID, &snap.Module, &stateRaw, &snap.RecordedAt); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("persist: scan latest snapshot for %s: %w", agentID, err)
	}
	if err := json.Unmarshal([]byte(stateRaw), &snap.State); err != nil {
		return Snapshot{}, false, fmt.Errorf("persist: unmarshal state for snapshot %d: %w", snap.ID, err)
	}
	return snap, true, nil
}
