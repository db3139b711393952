package db

import (
	"fmt"
	"time"
)

// Reading is one sample of the ambient light sensor together with the
// smoothed value and the calibration level chosen from it.
type Reading struct {
	TakenAt  time.Time `json:"taken_at"`
	Identity string    `json:"identity"`
	Raw      uint16    `json:"raw"`
	Smoothed float64   `json:"smoothed"`
	Level    int       `json:"level"`
}

// RecordReading appends r to the sensor log.
func (db *DB) RecordReading(r Reading) error {
	if r.TakenAt.IsZero() {
		r.TakenAt = time.Now()
	}
	_, err := db.Exec(`INSERT INTO sensor_reading (taken_at, identity, raw, smoothed, level) VALUES (?, ?, ?, ?, ?)`,
		float64(r.TakenAt.UnixNano())/1e9, r.Identity, r.Raw, r.Smoothed, r.Level)
	if err != nil {
		return fmt.Errorf("failed to record reading: %w", err)
	}
	return nil
}

// Readings returns up to limit readings, newest first.
func (db *DB) Readings(limit int) ([]Reading, error) {
	rows, err := db.Query(`SELECT taken_at, identity, raw, smoothed, level FROM sensor_reading
	          ORDER BY taken_at DESC, reading_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var taken float64
		if err := rows.Scan(&taken, &r.Identity, &r.Raw, &r.Smoothed, &r.Level); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.TakenAt = time.Unix(0, int64(taken*1e9))
		out = append(out, r)
	}
	return out, rows.Err()
}
