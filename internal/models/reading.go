package models

import "time"

// LoadcellReading is one raw telemetry sample, append-only.
// Kept for monitoring and as session-boundary evidence; never authoritative
// for business totals.
type LoadcellReading struct {
	ID         string    `json:"id"`
	DeviceID   int64     `json:"device_id"`
	Weight     float64   `json:"weight"` // kg, signed
	IsRelayOn  bool      `json:"is_relay_on"`
	RecordedAt time.Time `json:"recorded_at"`
}
