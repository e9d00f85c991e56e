package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"packhouse/internal/models"
	"packhouse/internal/repository"
)

const packingLogPageSize = 50

// MonitoringService exposes read and maintenance access over the raw
// telemetry and the packing event log.
type MonitoringService struct {
	readings repository.Readings
	packings repository.Packings
	devices  repository.Devices
	timeout  time.Duration
}

func NewMonitoringService(readings repository.Readings, packings repository.Packings, devices repository.Devices, timeout time.Duration) *MonitoringService {
	return &MonitoringService{
		readings: readings,
		packings: packings,
		devices:  devices,
		timeout:  timeout,
	}
}

var _ Monitoring = (*MonitoringService)(nil)

func (s *MonitoringService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// LatestReading returns the newest raw reading, or (nil, nil) when the
// device has never reported.
func (s *MonitoringService) LatestReading(ctx context.Context, deviceID int64) (*models.LoadcellReading, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.requireDevice(opCtx, deviceID); err != nil {
		return nil, err
	}
	return s.readings.Latest(opCtx, deviceID)
}

// PackingLogs returns the device's most recent packing events.
func (s *MonitoringService) PackingLogs(ctx context.Context, deviceID int64) ([]models.PackingLog, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.requireDevice(opCtx, deviceID); err != nil {
		return nil, err
	}
	return s.packings.ListByDevice(opCtx, deviceID, packingLogPageSize)
}

// AssignFarmer attributes a packing log to a farmer.
func (s *MonitoringService) AssignFarmer(ctx context.Context, logID string, farmerID int64) error {
	if logID == "" || farmerID <= 0 {
		return ErrValidation
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.packings.AssignFarmer(opCtx, logID, farmerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLogNotFound
		}
		return err
	}
	return nil
}

func (s *MonitoringService) DeletePackingLog(ctx context.Context, logID string) error {
	if logID == "" {
		return ErrValidation
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.packings.Delete(opCtx, logID)
}

// ResetDevice wipes a device's history and re-arms it. Administrative
// purge; the detector's invariants start over from zero.
func (s *MonitoringService) ResetDevice(ctx context.Context, deviceID int64) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.requireDevice(opCtx, deviceID); err != nil {
		return err
	}
	return s.packings.ResetDevice(opCtx, deviceID)
}

func (s *MonitoringService) requireDevice(ctx context.Context, deviceID int64) error {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return ErrDeviceNotFound
	}
	return nil
}
