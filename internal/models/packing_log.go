package models

import "time"

// PackingLog records "this much product was packed". Weight is the delta
// since the previous log of the cycle, not the absolute scale reading.
type PackingLog struct {
	ID        string    `json:"id"`
	DeviceID  int64     `json:"device_id"`
	Weight    float64   `json:"weight"`
	FarmerID  *int64    `json:"farmer_id,omitempty"` // attribution, assigned later
	CreatedAt time.Time `json:"created_at"`
}

// Advisory is the response payload for an ingested reading: the device's
// current thresholds plus any queued command (synchronous transport only).
type Advisory struct {
	Threshold      float64  `json:"threshold"`
	RelayThreshold float64  `json:"relayThreshold"`
	Command        *Command `json:"command,omitempty"`
}
