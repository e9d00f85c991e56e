package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"packhouse/internal/models"

	"github.com/google/uuid"
)

type PackingSQLite struct {
	db *sql.DB
}

func NewPackingSQLite(db *sql.DB) *PackingSQLite { return &PackingSQLite{db: db} }

var _ Packings = (*PackingSQLite)(nil)

const insertPackingLogSQL = `
	INSERT INTO packing_logs (id, device_id, weight, farmer_id, created_at)
	VALUES (?, ?, ?, ?, ?)
`

// Commit writes one packing log and advances the device's cumulative weight
// in a single transaction. A crash or interleaving can never leave a log
// without the matching last_logged_weight advance, or vice versa. When
// stopRelay is set the readiness flag is cleared in the same unit, so a
// call either logs-and-stops or just logs, never a partial mix.
func (r *PackingSQLite) Commit(ctx context.Context, deviceID int64, delta, currentWeight float64, stopRelay bool) (models.PackingLog, error) {
	log := models.PackingLog{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Weight:    delta,
		FarmerID:  nil,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PackingLog{}, fmt.Errorf("begin packing commit: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, insertPackingLogSQL,
		log.ID, log.DeviceID, log.Weight, log.FarmerID, log.CreatedAt,
	); err != nil {
		return models.PackingLog{}, fmt.Errorf("insert packing log: %w", err)
	}

	ready := !stopRelay
	if _, err := tx.ExecContext(ctx,
		`UPDATE devices SET last_logged_weight = ?, is_ready = ? WHERE id = ?`,
		currentWeight, ready, deviceID,
	); err != nil {
		return models.PackingLog{}, fmt.Errorf("advance device %d weight: %w", deviceID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.PackingLog{}, fmt.Errorf("commit packing log: %w", err)
	}
	return log, nil
}

// Append inserts a packing log outside the detector's delta accounting,
// used for explicit operator-triggered packing events.
func (r *PackingSQLite) Append(ctx context.Context, log models.PackingLog) (models.PackingLog, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	} else {
		log.CreatedAt = log.CreatedAt.UTC()
	}

	if _, err := r.db.ExecContext(ctx, insertPackingLogSQL,
		log.ID, log.DeviceID, log.Weight, log.FarmerID, log.CreatedAt,
	); err != nil {
		return models.PackingLog{}, fmt.Errorf("append packing log for device %d: %w", log.DeviceID, err)
	}
	return log, nil
}

// ListByDevice returns the newest logs first, up to limit.
func (r *PackingSQLite) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]models.PackingLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, weight, farmer_id, created_at
		FROM packing_logs
		WHERE device_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list packing logs for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	out := make([]models.PackingLog, 0, limit)
	for rows.Next() {
		var log models.PackingLog
		var farmer sql.NullInt64
		if err := rows.Scan(&log.ID, &log.DeviceID, &log.Weight, &farmer, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan packing log: %w", err)
		}
		if farmer.Valid {
			log.FarmerID = &farmer.Int64
		}
		log.CreatedAt = log.CreatedAt.UTC()
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignFarmer sets attribution on an existing log.
func (r *PackingSQLite) AssignFarmer(ctx context.Context, logID string, farmerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE packing_logs SET farmer_id = ? WHERE id = ?`, farmerID, logID)
	if err != nil {
		return fmt.Errorf("assign farmer to log %s: %w", logID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign farmer rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PackingSQLite) Delete(ctx context.Context, logID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM packing_logs WHERE id = ?`, logID); err != nil {
		return fmt.Errorf("delete packing log %s: %w", logID, err)
	}
	return nil
}

// ResetDevice purges the device's logs and readings and re-arms it for the
// next cycle, all in one transaction. Administrative use only.
func (r *PackingSQLite) ResetDevice(ctx context.Context, deviceID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin device reset: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{
		`DELETE FROM packing_logs WHERE device_id = ?`,
		`DELETE FROM loadcell_readings WHERE device_id = ?`,
		`UPDATE devices SET last_logged_weight = 0, is_ready = 1 WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, deviceID); err != nil {
			return fmt.Errorf("reset device %d: %w", deviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit device reset: %w", err)
	}
	return nil
}
