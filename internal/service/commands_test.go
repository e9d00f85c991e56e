package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"packhouse/internal/logger"
	"packhouse/internal/models"
)

func newTestCommander(store *memStore) *CommandService {
	return NewCommandService(store, logger.Get(logger.ErrorLevel), time.Second)
}

func TestQueue_TareNeedsNoValue(t *testing.T) {
	store := newMemStore(readyDevice())
	svc := newTestCommander(store)

	if err := svc.Queue(context.Background(), 1, models.Command{Type: models.CommandTare}); err != nil {
		t.Fatalf("Queue(TARE): %v", err)
	}

	raw := store.snapshot().PendingCommand
	if raw == nil {
		t.Fatalf("no command queued")
	}
	var cmd models.Command
	if err := json.Unmarshal([]byte(*raw), &cmd); err != nil {
		t.Fatalf("queued command is not valid JSON: %v", err)
	}
	if cmd.Type != models.CommandTare || cmd.Value != nil {
		t.Fatalf("queued command = %+v", cmd)
	}
}

func TestQueue_CalibrateUpdatesFactorImmediately(t *testing.T) {
	store := newMemStore(readyDevice())
	svc := newTestCommander(store)

	factor := 2310.5
	err := svc.Queue(context.Background(), 1, models.Command{Type: models.CommandCalibrate, Value: &factor})
	if err != nil {
		t.Fatalf("Queue(CALIBRATE): %v", err)
	}

	d := store.snapshot()
	if d.CalibrationFactor != factor {
		t.Fatalf("calibration factor = %v, want %v", d.CalibrationFactor, factor)
	}
	if d.PendingCommand == nil {
		t.Fatalf("calibrate command not queued for delivery")
	}
}

func TestQueue_LatestCommandWins(t *testing.T) {
	store := newMemStore(readyDevice())
	svc := newTestCommander(store)

	factor := 2280.0
	if err := svc.Queue(context.Background(), 1, models.Command{Type: models.CommandCalibrate, Value: &factor}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if err := svc.Queue(context.Background(), 1, models.Command{Type: models.CommandTare}); err != nil {
		t.Fatalf("Queue: %v", err)
	}

	var cmd models.Command
	if err := json.Unmarshal([]byte(*store.snapshot().PendingCommand), &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cmd.Type != models.CommandTare {
		t.Fatalf("slot holds %q, want the later TARE", cmd.Type)
	}
}

func TestQueue_Validation(t *testing.T) {
	store := newMemStore(readyDevice())
	svc := newTestCommander(store)

	err := svc.Queue(context.Background(), 1, models.Command{Type: models.CommandCalibrate})
	if !errors.Is(err, ErrCommandNoValue) {
		t.Fatalf("CALIBRATE without value: got %v", err)
	}

	err = svc.Queue(context.Background(), 1, models.Command{Type: "REBOOT"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("unknown type: got %v", err)
	}

	err = svc.Queue(context.Background(), 99, models.Command{Type: models.CommandTare})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("unknown device: got %v", err)
	}

	if store.snapshot().PendingCommand != nil {
		t.Fatalf("rejected commands reached the slot")
	}
}
