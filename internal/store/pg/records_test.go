package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"fleetops.io/internal/catalog"
	"fleetops.io/internal/records"
)

func vehicleSpec(t *testing.T) records.Spec {
	t.Helper()
	s, ok := records.Lookup(catalog.KindVehicle)
	if !ok {
		t.Fatal("vehicle spec missing")
	}
	return s
}

func vehicleRows() *sqlmock.Rows {
	return sqlmock.NewRows(append(append([]string{}, recordMeta...), "name", "odometer_km", "plate_number", "status", "vin"))
}

func TestGetRecord(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, organization_id, created_by_id, created_at, last_updated_at, name, odometer_km, plate_number, status, vin FROM vehicles WHERE id = $1 AND organization_id = $2")).
		WithArgs(int64(42), int64(1)).
		WillReturnRows(vehicleRows().AddRow(int64(42), int64(1), int64(7), now, now, []byte("Truck 1"), 1200.5, "KZ 123", "active", nil))

	rec, err := store.Get(context.Background(), vehicleSpec(t), 1, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.OwnerID != 7 || rec.Fields["name"] != "Truck 1" || rec.Fields["vin"] != nil || rec.Fields["odometer_km"] != 1200.5 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles")).
		WithArgs(int64(42), int64(1)).
		WillReturnRows(vehicleRows())

	if _, err := store.Get(context.Background(), vehicleSpec(t), 1, 42); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRecordIsConditional(t *testing.T) {
	store, mock := newMock(t)
	expected := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	next := expected.Add(time.Millisecond)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE vehicles SET status = $1, last_updated_at = greatest(date_trunc('milliseconds', clock_timestamp()), last_updated_at + interval '1 millisecond') WHERE id = $2 AND last_updated_at = $3 AND organization_id = $4 RETURNING id")).
		WithArgs("idle", int64(42), expected, int64(1)).
		WillReturnRows(vehicleRows().AddRow(int64(42), int64(1), int64(7), expected, next, "Truck 1", nil, "KZ 123", "idle", nil))

	rec, ok, err := store.Update(context.Background(), vehicleSpec(t), 1, 42, expected, map[string]any{"status": "idle"})
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	if !rec.LastUpdatedAt.Equal(next) || rec.Fields["status"] != "idle" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestUpdateRecordStale(t *testing.T) {
	store, mock := newMock(t)
	expected := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE vehicles SET")).
		WithArgs("idle", int64(42), expected, int64(1)).
		WillReturnRows(vehicleRows())

	_, ok, err := store.Update(context.Background(), vehicleSpec(t), 1, 42, expected, map[string]any{"status": "idle"})
	if err != nil || ok {
		t.Fatalf("stale update must report no match, got ok=%v err=%v", ok, err)
	}
}

func TestDeleteRecord(t *testing.T) {
	store, mock := newMock(t)
	expected := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("DELETE FROM vehicles WHERE id = $1 AND last_updated_at = $2 AND organization_id = $3")

	mock.ExpectExec(query).WithArgs(int64(42), expected, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(int64(42), expected, int64(1)).WillReturnResult(sqlmock.NewResult(0, 0))

	if ok, err := store.Delete(context.Background(), vehicleSpec(t), 1, 42, expected); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if ok, err := store.Delete(context.Background(), vehicleSpec(t), 1, 42, expected); err != nil || ok {
		t.Fatalf("second Delete must match nothing, got ok=%v err=%v", ok, err)
	}
}
