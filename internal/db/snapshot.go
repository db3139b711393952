package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/display1593/internal/led"
)

// Snapshot is a saved full frame.
type Snapshot struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	CreatedAt time.Time   `json:"created_at"`
	Colors    []led.Color `json:"-"`
}

// SaveSnapshot stores colors, indexed by LED id, and returns the new
// snapshot id.
func (db *DB) SaveSnapshot(label string, colors []led.Color) (string, error) {
	if len(colors) != led.Count {
		return "", fmt.Errorf("%w: %d colors, want %d", led.ErrWrongLength, len(colors), led.Count)
	}
	id := uuid.New().String()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO display_snapshot (snapshot_id, label, created_at) VALUES (?, ?, ?)`,
		id, label, time.Now().UnixNano()); err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO display_snapshot_led (snapshot_id, led_id, r, g, b) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()
	for i, c := range colors {
		if _, err := stmt.Exec(id, i, c.R, c.G, c.B); err != nil {
			return "", fmt.Errorf("failed to insert led %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently saved snapshot, or nil if none
// exists.
func (db *DB) LatestSnapshot() (*Snapshot, error) {
	var id string
	err := db.QueryRow(`SELECT snapshot_id FROM display_snapshot ORDER BY created_at DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	return db.Snapshot(id)
}

// Snapshot loads the snapshot with id, or nil if it does not exist.
func (db *DB) Snapshot(id string) (*Snapshot, error) {
	s := &Snapshot{ID: id}
	var created int64
	err := db.QueryRow(`SELECT label, created_at FROM display_snapshot WHERE snapshot_id = ?`, id).Scan(&s.Label, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.CreatedAt = time.Unix(0, created)

	rows, err := db.Query(`SELECT led_id, r, g, b FROM display_snapshot_led WHERE snapshot_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot leds: %w", err)
	}
	defer rows.Close()

	s.Colors = make([]led.Color, led.Count)
	for rows.Next() {
		var ledID, r, g, b int
		if err := rows.Scan(&ledID, &r, &g, &b); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot led: %w", err)
		}
		if !led.ID(ledID).Valid() {
			return nil, fmt.Errorf("snapshot %s: %w: %d", id, led.ErrInvalidLed, ledID)
		}
		s.Colors[ledID] = led.Clamp(r, g, b)
	}
	return s, rows.Err()
}

// Snapshots lists up to limit snapshots, newest first, without colours.
func (db *DB) Snapshots(limit int) ([]Snapshot, error) {
	rows, err := db.Query(`SELECT snapshot_id, label, created_at FROM display_snapshot ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var created int64
		if err := rows.Scan(&s.ID, &s.Label, &created); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.CreatedAt = time.Unix(0, created)
		out = append(out, s)
	}
	return out, rows.Err()
}
