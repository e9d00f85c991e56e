package service

import (
	"context"
	"errors"
	"time"

	"packhouse/internal/logger"
	"packhouse/internal/models"
	"packhouse/internal/repository"
)

// Domain errors surfaced to the transport adapters.
var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrValidation      = errors.New("invalid input")
	ErrUnknownCommand  = errors.New("unknown command type")
	ErrLogNotFound     = errors.New("packing log not found")
	ErrCommandNoValue  = errors.New("calibrate command requires a value")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
)

// IngestInput is the normalized reading both transports hand to the detector.
type IngestInput struct {
	Token          string
	Weight         float64
	RelayOn        bool
	DeliverCommand bool // only the synchronous transport can carry a command back
}

// Ingestor turns raw telemetry into packing events and advisories.
type Ingestor interface {
	Ingest(ctx context.Context, in IngestInput) (models.Advisory, error)
	RecordPack(ctx context.Context, token string, weight float64) error
}

// Commander queues remote commands for best-effort delivery on the
// device's next synchronous poll.
type Commander interface {
	Queue(ctx context.Context, deviceID int64, cmd models.Command) error
}

// Registry manages the durable device records.
type Registry interface {
	CreateDevice(ctx context.Context, p DeviceParams) (models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	UpdateDevice(ctx context.Context, id int64, p DeviceParams) (models.Device, error)
	DeleteDevice(ctx context.Context, id int64) error
}

// Monitoring exposes read and maintenance access to telemetry and events.
type Monitoring interface {
	LatestReading(ctx context.Context, deviceID int64) (*models.LoadcellReading, error)
	PackingLogs(ctx context.Context, deviceID int64) ([]models.PackingLog, error)
	AssignFarmer(ctx context.Context, logID string, farmerID int64) error
	DeletePackingLog(ctx context.Context, logID string) error
	ResetDevice(ctx context.Context, deviceID int64) error
}

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Publisher is the broadcast hook the detector calls after a packing log
// commits. Implemented by the MQTT gateway; a no-op stands in when the
// gateway is disabled.
type Publisher interface {
	PackingLogged(token, deviceName string, delta, total float64)
}

// NopPublisher discards all broadcasts.
type NopPublisher struct{}

func (NopPublisher) PackingLogged(string, string, float64, float64) {}

// Config carries the tuning knobs the ingestion pipeline needs.
type Config struct {
	MinWeightKg    float64       // noise filter lower bound
	MaxWeightKg    float64       // noise filter upper bound
	StoreTimeout   time.Duration // bound on every persistence call
	RecorderBuffer int           // raw-capture queue depth
	SigningKey     string
	TokenTTL       time.Duration
}

// DefaultConfig mirrors the values shipped in configs/config.yml.
func DefaultConfig() Config {
	return Config{
		MinWeightKg:    -2.0,
		MaxWeightKg:    300.0,
		StoreTimeout:   3 * time.Second,
		RecorderBuffer: 256,
		TokenTTL:       time.Hour,
	}
}

// Service aggregates all sub-services.
type Service struct {
	Ingestor
	Commander
	Registry
	Monitoring
	Authorization

	recorder *Recorder
}

// NewService wires the repository layer into concrete services. The
// returned Service owns a background recorder; call Run to start it and
// rely on context cancellation to stop it.
func NewService(repos *repository.Repository, pub Publisher, log *logger.Logger, cfg Config) *Service {
	if pub == nil {
		pub = NopPublisher{}
	}
	rec := NewRecorder(repos.Readings, log, cfg.RecorderBuffer, cfg.StoreTimeout)
	return &Service{
		Ingestor:      NewIngestService(repos.Devices, repos.Packings, rec, pub, log, cfg),
		Commander:     NewCommandService(repos.Devices, log, cfg.StoreTimeout),
		Registry:      NewRegistryService(repos.Devices, cfg.StoreTimeout),
		Monitoring:    NewMonitoringService(repos.Readings, repos.Packings, repos.Devices, cfg.StoreTimeout),
		Authorization: NewAuthService(repos.Auth, cfg.SigningKey, cfg.TokenTTL),
		recorder:      rec,
	}
}

// Run starts background workers until ctx is canceled.
func (s *Service) Run(ctx context.Context) {
	s.recorder.Run(ctx)
}
