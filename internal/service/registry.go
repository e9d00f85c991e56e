package service

import (
	"context"
	"strings"
	"time"

	"packhouse/internal/models"
	"packhouse/internal/repository"

	"github.com/google/uuid"
)

// Default configuration for newly registered devices.
const (
	defaultLogThresholdKg   = 5.0
	defaultRelayThresholdKg = 50.0
	defaultCalibration      = 2280.0
)

// DeviceParams are the operator-editable fields of a device.
type DeviceParams struct {
	Name              string
	LogThreshold      *float64
	RelayThreshold    *float64
	CalibrationFactor *float64
}

// RegistryService manages device records. Tokens are minted once at
// creation and never change.
type RegistryService struct {
	devices repository.Devices
	timeout time.Duration
}

func NewRegistryService(devices repository.Devices, timeout time.Duration) *RegistryService {
	return &RegistryService{devices: devices, timeout: timeout}
}

var _ Registry = (*RegistryService)(nil)

func (s *RegistryService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// CreateDevice registers a new packing station with a fresh token. New
// devices start ready with a zeroed cumulative weight.
func (s *RegistryService) CreateDevice(ctx context.Context, p DeviceParams) (models.Device, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return models.Device{}, ErrValidation
	}

	d := models.Device{
		Token:             uuid.NewString(),
		Name:              name,
		LogThreshold:      defaultLogThresholdKg,
		RelayThreshold:    defaultRelayThresholdKg,
		CalibrationFactor: defaultCalibration,
		IsReady:           true,
		LastLoggedWeight:  0,
		CreatedAt:         time.Now().UTC(),
	}
	applyParams(&d, p)

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.devices.Create(opCtx, d)
}

func (s *RegistryService) ListDevices(ctx context.Context) ([]models.Device, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.devices.List(opCtx)
}

// UpdateDevice changes configuration only; token and live state are not
// touched here.
func (s *RegistryService) UpdateDevice(ctx context.Context, id int64, p DeviceParams) (models.Device, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	device, err := s.devices.GetByID(opCtx, id)
	if err != nil {
		return models.Device{}, err
	}
	if device == nil {
		return models.Device{}, ErrDeviceNotFound
	}

	if name := strings.TrimSpace(p.Name); name != "" {
		device.Name = name
	}
	applyParams(device, p)

	if err := s.devices.Update(opCtx, *device); err != nil {
		return models.Device{}, err
	}
	return *device, nil
}

func (s *RegistryService) DeleteDevice(ctx context.Context, id int64) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	device, err := s.devices.GetByID(opCtx, id)
	if err != nil {
		return err
	}
	if device == nil {
		return ErrDeviceNotFound
	}
	return s.devices.Delete(opCtx, id)
}

func applyParams(d *models.Device, p DeviceParams) {
	if p.LogThreshold != nil && *p.LogThreshold > 0 {
		d.LogThreshold = *p.LogThreshold
	}
	if p.RelayThreshold != nil && *p.RelayThreshold > 0 {
		d.RelayThreshold = *p.RelayThreshold
	}
	if p.CalibrationFactor != nil && *p.CalibrationFactor > 0 {
		d.CalibrationFactor = *p.CalibrationFactor
	}
}
