package service

import (
	"context"
	"time"

	"packhouse/internal/logger"
	"packhouse/internal/models"
	"packhouse/internal/repository"
)

// Recorder appends raw readings in the background so the audit write never
// blocks the detector. The queue is bounded; when the store falls behind,
// readings are dropped with a warning rather than stalling ingestion. Raw
// telemetry is monitoring evidence, not the source of business totals, so
// a dropped sample is acceptable.
type Recorder struct {
	readings repository.Readings
	log      *logger.Logger
	timeout  time.Duration
	queue    chan models.LoadcellReading
}

func NewRecorder(readings repository.Readings, log *logger.Logger, buffer int, timeout time.Duration) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Recorder{
		readings: readings,
		log:      log,
		timeout:  timeout,
		queue:    make(chan models.LoadcellReading, buffer),
	}
}

// Record enqueues one reading. Never blocks.
func (r *Recorder) Record(reading models.LoadcellReading) {
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC()
	}
	select {
	case r.queue <- reading:
	default:
		if r.log != nil {
			r.log.Warnw("reading_dropped_queue_full", "device_id", reading.DeviceID)
		}
	}
}

// Run drains the queue until ctx is canceled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case reading := <-r.queue:
			r.write(reading)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case reading := <-r.queue:
			r.write(reading)
		default:
			return
		}
	}
}

func (r *Recorder) write(reading models.LoadcellReading) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.readings.Append(ctx, reading); err != nil && r.log != nil {
		r.log.Errorw("reading_append_failed", "err", err, "device_id", reading.DeviceID)
	}
}
