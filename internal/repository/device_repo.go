package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"packhouse/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

var _ Devices = (*DeviceSQLite)(nil)

const deviceColumns = `id, token, name, log_threshold, relay_threshold, calibration_factor,
	is_ready, last_logged_weight, pending_command, created_at`

const (
	insertDeviceSQL = `
		INSERT INTO devices (token, name, log_threshold, relay_threshold, calibration_factor,
			is_ready, last_logged_weight, pending_command, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// Guarded on the current is_ready value so the false->true edge fires
	// exactly once per cycle, regardless of how many low readings arrive.
	markReadySQL = `
		UPDATE devices SET is_ready = 1, last_logged_weight = 0
		WHERE id = ? AND is_ready = 0
	`

	stopRelaySQL = `UPDATE devices SET is_ready = 0 WHERE id = ?`
)

func scanDevice(row interface{ Scan(...any) error }) (*models.Device, error) {
	var d models.Device
	var pending sql.NullString
	if err := row.Scan(
		&d.ID,
		&d.Token,
		&d.Name,
		&d.LogThreshold,
		&d.RelayThreshold,
		&d.CalibrationFactor,
		&d.IsReady,
		&d.LastLoggedWeight,
		&pending,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	if pending.Valid && pending.String != "" {
		d.PendingCommand = &pending.String
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

// Create inserts a new device and returns it with the assigned ID.
func (r *DeviceSQLite) Create(ctx context.Context, d models.Device) (models.Device, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	} else {
		d.CreatedAt = d.CreatedAt.UTC()
	}

	res, err := r.db.ExecContext(ctx, insertDeviceSQL,
		d.Token,
		d.Name,
		d.LogThreshold,
		d.RelayThreshold,
		d.CalibrationFactor,
		d.IsReady,
		d.LastLoggedWeight,
		d.PendingCommand,
		d.CreatedAt,
	)
	if err != nil {
		return models.Device{}, fmt.Errorf("insert device %q: %w", d.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Device{}, fmt.Errorf("device insert id: %w", err)
	}
	d.ID = id
	return d, nil
}

func (r *DeviceSQLite) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	out := make([]models.Device, 0, 16)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a device. Returns (nil, nil) if not found.
func (r *DeviceSQLite) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select device %d: %w", id, err)
	}
	return d, nil
}

// GetByToken resolves a device by its bearer token. Returns (nil, nil) if
// the token is not registered.
func (r *DeviceSQLite) GetByToken(ctx context.Context, token string) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE token = ?`, token)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select device by token: %w", err)
	}
	return d, nil
}

// Update persists configuration fields (name, thresholds, calibration).
// Live state columns are owned by the detector and not touched here.
func (r *DeviceSQLite) Update(ctx context.Context, d models.Device) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, log_threshold = ?, relay_threshold = ?, calibration_factor = ?
		WHERE id = ?
	`, d.Name, d.LogThreshold, d.RelayThreshold, d.CalibrationFactor, d.ID)
	if err != nil {
		return fmt.Errorf("update device %d: %w", d.ID, err)
	}
	return nil
}

func (r *DeviceSQLite) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete device %d: %w", id, err)
	}
	return nil
}

// MarkReady flips is_ready to true and zeroes the cumulative weight, but
// only when the device is currently not ready. Reports whether this call
// performed the transition.
func (r *DeviceSQLite) MarkReady(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, strings.TrimSpace(markReadySQL), id)
	if err != nil {
		return false, fmt.Errorf("mark device %d ready: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark ready rows affected: %w", err)
	}
	return n > 0, nil
}

// StopRelay clears the readiness flag; the device must stop its relay.
func (r *DeviceSQLite) StopRelay(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, stopRelaySQL, id); err != nil {
		return fmt.Errorf("stop relay for device %d: %w", id, err)
	}
	return nil
}

// SetPendingCommand overwrites the single command slot (last writer wins).
// A CALIBRATE command also persists the new calibration factor immediately
// so the value survives even if delivery is later lost.
func (r *DeviceSQLite) SetPendingCommand(ctx context.Context, id int64, raw string, calibration *float64) error {
	var err error
	if calibration != nil {
		_, err = r.db.ExecContext(ctx,
			`UPDATE devices SET pending_command = ?, calibration_factor = ? WHERE id = ?`,
			raw, *calibration, id)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE devices SET pending_command = ? WHERE id = ?`, raw, id)
	}
	if err != nil {
		return fmt.Errorf("queue command for device %d: %w", id, err)
	}
	return nil
}

// TakePendingCommand reads and clears the command slot in one transaction.
// Returns (nil, nil) when no command is queued.
func (r *DeviceSQLite) TakePendingCommand(ctx context.Context, id int64) (*string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin take command: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var pending sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT pending_command FROM devices WHERE id = ?`, id).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("read pending command for device %d: %w", id, err)
	}
	if !pending.Valid || pending.String == "" {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE devices SET pending_command = NULL WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("clear pending command for device %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit take command: %w", err)
	}
	return &pending.String, nil
}
