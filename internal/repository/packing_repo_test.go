package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newPackingMock(t *testing.T) (*PackingSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return NewPackingSQLite(db), mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

var (
	insertLogPattern = regexp.QuoteMeta(`INSERT INTO packing_logs (id, device_id, weight, farmer_id, created_at)`)
	advancePattern   = regexp.QuoteMeta(`UPDATE devices SET last_logged_weight = ?, is_ready = ? WHERE id = ?`)
)

func TestPackingSQLite_CommitIsOneTransaction(t *testing.T) {
	repo, mock, done := newPackingMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(insertLogPattern).
		WithArgs(sqlmock.AnyArg(), int64(1), 5.0, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(advancePattern).
		WithArgs(11.0, true, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	log, err := repo.Commit(context.Background(), 1, 5.0, 11.0, false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if log.Weight != 5.0 || log.DeviceID != 1 || log.ID == "" {
		t.Fatalf("bad log: %+v", log)
	}
}

func TestPackingSQLite_CommitWithRelayStop(t *testing.T) {
	repo, mock, done := newPackingMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(insertLogPattern).
		WithArgs(sqlmock.AnyArg(), int64(1), 50.0, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// is_ready cleared in the same transaction as the log insert.
	mock.ExpectExec(advancePattern).
		WithArgs(50.0, false, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := repo.Commit(context.Background(), 1, 50.0, 50.0, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestPackingSQLite_CommitRollsBackOnFailure(t *testing.T) {
	repo, mock, done := newPackingMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(insertLogPattern).
		WithArgs(sqlmock.AnyArg(), int64(1), 5.0, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(advancePattern).
		WithArgs(11.0, true, int64(1)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := repo.Commit(context.Background(), 1, 5.0, 11.0, false); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestPackingSQLite_AssignFarmer(t *testing.T) {
	repo, mock, done := newPackingMock(t)
	defer done()

	assign := regexp.QuoteMeta(`UPDATE packing_logs SET farmer_id = ? WHERE id = ?`)

	mock.ExpectExec(assign).
		WithArgs(int64(7), "log-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.AssignFarmer(context.Background(), "log-1", 7); err != nil {
		t.Fatalf("AssignFarmer: %v", err)
	}

	mock.ExpectExec(assign).
		WithArgs(int64(7), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.AssignFarmer(context.Background(), "missing", 7); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing log: got %v, want sql.ErrNoRows", err)
	}
}

func TestPackingSQLite_ResetDevice(t *testing.T) {
	repo, mock, done := newPackingMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM packing_logs WHERE device_id = ?`)).
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM loadcell_readings WHERE device_id = ?`)).
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET last_logged_weight = 0, is_ready = 1 WHERE id = ?`)).
		WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ResetDevice(context.Background(), 1); err != nil {
		t.Fatalf("ResetDevice: %v", err)
	}
}
