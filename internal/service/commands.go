package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"packhouse/internal/logger"
	"packhouse/internal/models"
	"packhouse/internal/repository"
)

// CommandService queues remote commands. Delivery is best-effort,
// at-most-once: the command rides the next synchronous poll and is never
// retried by the server.
type CommandService struct {
	devices repository.Devices
	log     *logger.Logger
	timeout time.Duration
}

func NewCommandService(devices repository.Devices, log *logger.Logger, timeout time.Duration) *CommandService {
	return &CommandService{devices: devices, log: log, timeout: timeout}
}

var _ Commander = (*CommandService)(nil)

// Queue stores the command in the device's single slot, replacing whatever
// was there. CALIBRATE also writes the calibration factor immediately so
// the value is visible even if delivery is later lost.
func (s *CommandService) Queue(ctx context.Context, deviceID int64, cmd models.Command) error {
	switch cmd.Type {
	case models.CommandTare:
		// no value required
	case models.CommandCalibrate:
		if cmd.Value == nil {
			return ErrCommandNoValue
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	raw, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("serialize command: %w", err)
	}

	opCtx := ctx
	cancel := func() {}
	if s.timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	device, err := s.devices.GetByID(opCtx, deviceID)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}
	if device == nil {
		return ErrDeviceNotFound
	}

	var calibration *float64
	if cmd.Type == models.CommandCalibrate {
		calibration = cmd.Value
	}
	if err := s.devices.SetPendingCommand(opCtx, deviceID, string(raw), calibration); err != nil {
		return err
	}

	s.log.Infow("command_queued", "device_id", deviceID, "type", cmd.Type)
	return nil
}
