package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"packhouse/internal/models"

	"github.com/google/uuid"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

var _ Readings = (*ReadingSQLite)(nil)

// Append inserts one raw reading. ID and RecordedAt are set when empty.
func (r *ReadingSQLite) Append(ctx context.Context, reading models.LoadcellReading) error {
	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC()
	} else {
		reading.RecordedAt = reading.RecordedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loadcell_readings (id, device_id, weight, is_relay_on, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		reading.ID,
		reading.DeviceID,
		reading.Weight,
		reading.IsRelayOn,
		reading.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append reading for device %d: %w", reading.DeviceID, err)
	}
	return nil
}

// Latest returns the most recent reading for a device, or (nil, nil) when
// the device has never reported.
func (r *ReadingSQLite) Latest(ctx context.Context, deviceID int64) (*models.LoadcellReading, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, device_id, weight, is_relay_on, recorded_at
		FROM loadcell_readings
		WHERE device_id = ?
		ORDER BY recorded_at DESC
		LIMIT 1
	`, deviceID)

	var reading models.LoadcellReading
	if err := row.Scan(
		&reading.ID,
		&reading.DeviceID,
		&reading.Weight,
		&reading.IsRelayOn,
		&reading.RecordedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest reading for device %d: %w", deviceID, err)
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	return &reading, nil
}
