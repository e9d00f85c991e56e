package repository

import (
	"context"
	"database/sql"

	"packhouse/internal/models"
	"packhouse/internal/repository/db"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// Devices is the registry of packing stations. MarkReady and StopRelay are
// conditional single-row updates so the readiness edges fire exactly once
// even under concurrent ingestion.
type Devices interface {
	Create(ctx context.Context, d models.Device) (models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	GetByID(ctx context.Context, id int64) (*models.Device, error)
	GetByToken(ctx context.Context, token string) (*models.Device, error)
	Update(ctx context.Context, d models.Device) error
	Delete(ctx context.Context, id int64) error
	MarkReady(ctx context.Context, id int64) (bool, error)
	StopRelay(ctx context.Context, id int64) error
	SetPendingCommand(ctx context.Context, id int64, raw string, calibration *float64) error
	TakePendingCommand(ctx context.Context, id int64) (*string, error)
}

// Readings is the append-only raw telemetry log.
type Readings interface {
	Append(ctx context.Context, r models.LoadcellReading) error
	Latest(ctx context.Context, deviceID int64) (*models.LoadcellReading, error)
}

// Packings owns the business events. Commit is the atomic unit that inserts
// a packing log and advances the device's cumulative weight in one
// transaction.
type Packings interface {
	Commit(ctx context.Context, deviceID int64, delta, currentWeight float64, stopRelay bool) (models.PackingLog, error)
	Append(ctx context.Context, log models.PackingLog) (models.PackingLog, error)
	ListByDevice(ctx context.Context, deviceID int64, limit int) ([]models.PackingLog, error)
	AssignFarmer(ctx context.Context, logID string, farmerID int64) error
	Delete(ctx context.Context, logID string) error
	ResetDevice(ctx context.Context, deviceID int64) error
}

type Repository struct {
	Devices  Devices
	Readings Readings
	Packings Packings
	Auth     Authorization
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{
		Devices:  NewDeviceSQLite(conn),
		Readings: NewReadingSQLite(conn),
		Packings: NewPackingSQLite(conn),
		Auth:     NewUserRepository(conn),
	}
}

// InitDB opens the SQLite store and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}
