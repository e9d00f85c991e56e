package models

import "time"

// Command types a device understands.
const (
	CommandTare      = "TARE"
	CommandCalibrate = "CALIBRATE"
)

// Device is one registered packing station (load cell + relay).
type Device struct {
	ID                int64     `json:"id"`
	Token             string    `json:"token"` // opaque bearer credential, immutable
	Name              string    `json:"name"`
	LogThreshold      float64   `json:"log_threshold"`      // kg delta that triggers a packing log
	RelayThreshold    float64   `json:"relay_threshold"`    // kg at which the relay must stop
	CalibrationFactor float64   `json:"calibration_factor"` // device-side scale conversion
	IsReady           bool      `json:"is_ready"`           // relay permitted to run
	LastLoggedWeight  float64   `json:"last_logged_weight"` // kg already converted into packing logs this cycle
	PendingCommand    *string   `json:"-"`                  // serialized Command, at most one
	CreatedAt         time.Time `json:"created_at"`
}

// Command is a remote instruction delivered on the device's next poll.
type Command struct {
	Type  string   `json:"type"` // TARE | CALIBRATE
	Value *float64 `json:"value,omitempty"`
}
