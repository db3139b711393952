package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/display1593/internal/serialmux"
)

// ControllerPort is the remembered device path and serial settings for one
// controller identity.
type ControllerPort struct {
	ID        int    `json:"id"`
	Identity  string `json:"identity"`
	PortPath  string `json:"port_path"`
	BaudRate  int    `json:"baud_rate"`
	DataBits  int    `json:"data_bits"`
	StopBits  int    `json:"stop_bits"`
	Parity    string `json:"parity"`
	Enabled   bool   `json:"enabled"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Options returns the serial settings of the port.
func (p *ControllerPort) Options() serialmux.PortOptions {
	return serialmux.PortOptions{BaudRate: p.BaudRate, DataBits: p.DataBits, StopBits: p.StopBits, Parity: p.Parity}
}

const controllerPortColumns = `id, identity, port_path, baud_rate, data_bits, stop_bits, parity, enabled, created_at, updated_at`

func scanControllerPort(row interface{ Scan(...any) error }) (*ControllerPort, error) {
	var p ControllerPort
	var enabled int
	if err := row.Scan(&p.ID, &p.Identity, &p.PortPath, &p.BaudRate, &p.DataBits, &p.StopBits,
		&p.Parity, &enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Enabled = enabled == 1
	return &p, nil
}

// ControllerPorts returns every stored port, oldest first.
func (db *DB) ControllerPorts() ([]ControllerPort, error) {
	rows, err := db.Query(`SELECT ` + controllerPortColumns + ` FROM controller_port ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller ports: %w", err)
	}
	defer rows.Close()

	var ports []ControllerPort
	for rows.Next() {
		p, err := scanControllerPort(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller port: %w", err)
		}
		ports = append(ports, *p)
	}
	return ports, rows.Err()
}

// ControllerPortFor returns the port stored for identity, or nil if none.
func (db *DB) ControllerPortFor(identity string) (*ControllerPort, error) {
	p, err := scanControllerPort(db.QueryRow(
		`SELECT `+controllerPortColumns+` FROM controller_port WHERE identity = ?`, identity))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get controller port: %w", err)
	}
	return p, nil
}

// SaveControllerPort inserts or updates the port for p.Identity after
// normalising its serial settings.
func (db *DB) SaveControllerPort(p *ControllerPort) error {
	opts, err := p.Options().Normalise()
	if err != nil {
		return fmt.Errorf("invalid serial settings for %s: %w", p.Identity, err)
	}
	p.BaudRate, p.DataBits, p.StopBits, p.Parity = opts.BaudRate, opts.DataBits, opts.StopBits, opts.Parity

	enabled := 0
	if p.Enabled {
		enabled = 1
	}
	now := time.Now().Unix()
	_, err = db.Exec(`INSERT INTO controller_port
	          (identity, port_path, baud_rate, data_bits, stop_bits, parity, enabled, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT (identity) DO UPDATE SET
	              port_path = excluded.port_path, baud_rate = excluded.baud_rate,
	              data_bits = excluded.data_bits, stop_bits = excluded.stop_bits,
	              parity = excluded.parity, enabled = excluded.enabled,
	              updated_at = excluded.updated_at`,
		p.Identity, p.PortPath, p.BaudRate, p.DataBits, p.StopBits, p.Parity, enabled, now, now)
	if err != nil {
		return fmt.Errorf("failed to save controller port: %w", err)
	}
	return nil
}

// DeleteControllerPort removes the port stored for identity.
func (db *DB) DeleteControllerPort(identity string) error {
	result, err := db.Exec(`DELETE FROM controller_port WHERE identity = ?`, identity)
	if err != nil {
		return fmt.Errorf("failed to delete controller port: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("controller port for %q not found", identity)
	}
	return nil
}
