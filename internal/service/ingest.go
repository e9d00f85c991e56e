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

// resetThresholdKg is the "load removed" boundary: a reading at or below it
// re-arms a device that has finished a cycle.
const resetThresholdKg = 0.5

// IngestService is the packing detector. Both transport adapters call
// Ingest; the algorithm itself lives only here.
type IngestService struct {
	devices  repository.Devices
	packings repository.Packings
	recorder *Recorder
	pub      Publisher
	log      *logger.Logger
	locks    *deviceLocks
	cfg      Config
}

func NewIngestService(devices repository.Devices, packings repository.Packings, rec *Recorder, pub Publisher, log *logger.Logger, cfg Config) *IngestService {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &IngestService{
		devices:  devices,
		packings: packings,
		recorder: rec,
		pub:      pub,
		log:      log,
		locks:    newDeviceLocks(),
		cfg:      cfg,
	}
}

var _ Ingestor = (*IngestService)(nil)

// Ingest processes one validated reading:
//
//  1. resolve the token and filter physically impossible values,
//  2. under the device's lock: capture the raw reading, fire the reset
//     edge, accumulate the delta and emit at most one packing log, and
//     evaluate the relay gate,
//  3. attach any pending command when the transport can deliver it.
//
// Resending the same weight is harmless: the second call computes a zero
// delta and changes nothing.
func (s *IngestService) Ingest(ctx context.Context, in IngestInput) (models.Advisory, error) {
	if in.Token == "" {
		return models.Advisory{}, fmt.Errorf("%w: token is required", ErrValidation)
	}

	device, err := s.resolveToken(ctx, in.Token)
	if err != nil {
		return models.Advisory{}, err
	}
	adv := models.Advisory{
		Threshold:      device.LogThreshold,
		RelayThreshold: device.RelayThreshold,
	}

	// Load-cell ADC spikes are common; they must never move the cumulative
	// weight or trip a relay transition, and are not even recorded.
	if in.Weight < s.cfg.MinWeightKg || in.Weight > s.cfg.MaxWeightKg {
		s.log.Debugw("reading_rejected_out_of_range",
			"device_id", device.ID, "weight", in.Weight)
		return adv, nil
	}

	logged, err := s.detect(ctx, device.ID, in, &adv)
	if err != nil {
		return models.Advisory{}, err
	}
	if logged != nil {
		// Best-effort broadcast for dashboards, outside the device lock.
		s.pub.PackingLogged(device.Token, device.Name, logged.Weight, in.Weight)
	}
	return adv, nil
}

// detect runs the serialized section of the algorithm and returns the
// packing log emitted by this call, if any.
func (s *IngestService) detect(ctx context.Context, deviceID int64, in IngestInput, adv *models.Advisory) (*models.PackingLog, error) {
	unlock := s.locks.acquire(deviceID)
	defer unlock()

	// Re-read inside the critical section: a concurrent call for the same
	// token may have advanced the state since the token was resolved.
	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	adv.Threshold = device.LogThreshold
	adv.RelayThreshold = device.RelayThreshold

	s.recorder.Record(models.LoadcellReading{
		DeviceID:   device.ID,
		Weight:     in.Weight,
		IsRelayOn:  in.RelayOn,
		RecordedAt: time.Now().UTC(),
	})

	// Reset edge: load removed after a completed cycle. The conditional
	// update guarantees the transition fires once even if two calls race
	// here.
	if in.Weight <= resetThresholdKg && !device.IsReady {
		opCtx, cancel := s.opCtx(ctx)
		fired, err := s.devices.MarkReady(opCtx, device.ID)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("re-arm device: %w", err)
		}
		if fired {
			device.IsReady = true
			device.LastLoggedWeight = 0
			s.log.Infow("device_ready_for_next_cycle", "device_id", device.ID, "name", device.Name)
		}
	}

	// Relay gate: at or above the stop weight the relay must not keep
	// running. Folded into the packing commit when both fire on one call.
	stop := in.RelayOn && device.IsReady && in.Weight >= device.RelayThreshold

	var logged *models.PackingLog
	if device.IsReady && in.RelayOn && in.Weight > 0 {
		// One call advances by exactly one delta against the live weight.
		// A large jump yields one large log, never N synthetic ones.
		if delta := in.Weight - device.LastLoggedWeight; delta >= device.LogThreshold {
			opCtx, cancel := s.opCtx(ctx)
			plog, err := s.packings.Commit(opCtx, device.ID, delta, in.Weight, stop)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("commit packing log: %w", err)
			}
			s.log.Infow("packing_logged",
				"device_id", device.ID, "delta_kg", delta, "total_kg", in.Weight)
			logged = &plog
			stop = false // readiness already cleared in the same transaction
		}
	}

	if stop {
		opCtx, cancel := s.opCtx(ctx)
		err := s.devices.StopRelay(opCtx, device.ID)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("stop relay: %w", err)
		}
		s.log.Infow("relay_stop", "device_id", device.ID, "weight_kg", in.Weight)
	}

	if in.DeliverCommand {
		s.attachPendingCommand(ctx, device.ID, adv)
	}
	return logged, nil
}

// attachPendingCommand moves the queued command, if any, onto the advisory.
// Failures only log: the command stays queued and rides the next poll.
func (s *IngestService) attachPendingCommand(ctx context.Context, deviceID int64, adv *models.Advisory) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := s.devices.TakePendingCommand(opCtx, deviceID)
	if err != nil {
		s.log.Errorw("take_pending_command_failed", "err", err, "device_id", deviceID)
		return
	}
	if raw == nil {
		return
	}
	var cmd models.Command
	if err := json.Unmarshal([]byte(*raw), &cmd); err != nil {
		s.log.Errorw("pending_command_unparseable", "err", err, "device_id", deviceID)
		return
	}
	adv.Command = &cmd
}

// RecordPack stores an operator-triggered packing event (physical pack
// button) for the device. It bypasses delta accounting on purpose: the
// weight is whatever the operator confirmed.
func (s *IngestService) RecordPack(ctx context.Context, token string, weight float64) error {
	device, err := s.resolveToken(ctx, token)
	if err != nil {
		return err
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	log, err := s.packings.Append(opCtx, models.PackingLog{
		DeviceID: device.ID,
		Weight:   weight,
	})
	if err != nil {
		return fmt.Errorf("record manual pack: %w", err)
	}

	s.log.Infow("manual_packing_logged", "device_id", device.ID, "weight_kg", weight)
	s.pub.PackingLogged(device.Token, device.Name, log.Weight, weight)
	return nil
}

func (s *IngestService) resolveToken(ctx context.Context, token string) (*models.Device, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	device, err := s.devices.GetByToken(opCtx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve device token: %w", err)
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

func (s *IngestService) loadDevice(ctx context.Context, id int64) (*models.Device, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	device, err := s.devices.GetByID(opCtx, id)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

// opCtx bounds a persistence call so a slow store degrades into a rejected
// ingestion instead of a pile-up of stalled device calls.
func (s *IngestService) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}
