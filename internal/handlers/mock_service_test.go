package handlers

import (
	"context"

	"packhouse/internal/models"
	"packhouse/internal/service"
)

// Function-field mocks for the service interfaces. Only the fields a test
// sets are expected to be called.

type mockIngestor struct {
	ingest     func(ctx context.Context, in service.IngestInput) (models.Advisory, error)
	recordPack func(ctx context.Context, token string, weight float64) error
}

func (m *mockIngestor) Ingest(ctx context.Context, in service.IngestInput) (models.Advisory, error) {
	return m.ingest(ctx, in)
}

func (m *mockIngestor) RecordPack(ctx context.Context, token string, weight float64) error {
	return m.recordPack(ctx, token, weight)
}

type mockCommander struct {
	queue func(ctx context.Context, deviceID int64, cmd models.Command) error
}

func (m *mockCommander) Queue(ctx context.Context, deviceID int64, cmd models.Command) error {
	return m.queue(ctx, deviceID, cmd)
}

type mockRegistry struct {
	create func(ctx context.Context, p service.DeviceParams) (models.Device, error)
	list   func(ctx context.Context) ([]models.Device, error)
	update func(ctx context.Context, id int64, p service.DeviceParams) (models.Device, error)
	delete func(ctx context.Context, id int64) error
}

func (m *mockRegistry) CreateDevice(ctx context.Context, p service.DeviceParams) (models.Device, error) {
	return m.create(ctx, p)
}

func (m *mockRegistry) ListDevices(ctx context.Context) ([]models.Device, error) {
	return m.list(ctx)
}

func (m *mockRegistry) UpdateDevice(ctx context.Context, id int64, p service.DeviceParams) (models.Device, error) {
	return m.update(ctx, id, p)
}

func (m *mockRegistry) DeleteDevice(ctx context.Context, id int64) error {
	return m.delete(ctx, id)
}

type mockMonitoring struct {
	latest       func(ctx context.Context, deviceID int64) (*models.LoadcellReading, error)
	logs         func(ctx context.Context, deviceID int64) ([]models.PackingLog, error)
	assignFarmer func(ctx context.Context, logID string, farmerID int64) error
	deleteLog    func(ctx context.Context, logID string) error
	reset        func(ctx context.Context, deviceID int64) error
}

func (m *mockMonitoring) LatestReading(ctx context.Context, deviceID int64) (*models.LoadcellReading, error) {
	return m.latest(ctx, deviceID)
}

func (m *mockMonitoring) PackingLogs(ctx context.Context, deviceID int64) ([]models.PackingLog, error) {
	return m.logs(ctx, deviceID)
}

func (m *mockMonitoring) AssignFarmer(ctx context.Context, logID string, farmerID int64) error {
	return m.assignFarmer(ctx, logID, farmerID)
}

func (m *mockMonitoring) DeletePackingLog(ctx context.Context, logID string) error {
	return m.deleteLog(ctx, logID)
}

func (m *mockMonitoring) ResetDevice(ctx context.Context, deviceID int64) error {
	return m.reset(ctx, deviceID)
}

type mockAuth struct {
	signUp   func(username, password string) (int, error)
	genToken func(username, password string) (string, error)
	parse    func(accessToken string) (int, error)
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	return m.signUp(username, password)
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.genToken(username, password)
}

func (m *mockAuth) ParseToken(accessToken string) (int, error) {
	return m.parse(accessToken)
}

// allowAnyToken authenticates every bearer token as operator 1.
func allowAnyToken() *mockAuth {
	return &mockAuth{parse: func(string) (int, error) { return 1, nil }}
}
