package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

func newBookingRepoMock(t *testing.T) (*BookingRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewBookingRepository(sqlxDB, NewScheduleRepository(sqlxDB), NewAppointmentRepository(sqlxDB))
	return repo, mock, func() { db.Close() }
}

func slotLockRows(available, booked bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "schedule_id", "is_available", "is_booked", "patient_id", "day_available"}).
		AddRow("slot-1", "sched-1", available, booked, nil, true)
}

func emptySlotLockRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "schedule_id", "is_available", "is_booked", "patient_id", "day_available"})
}

func TestBookingRepositoryBook(t *testing.T) {
	repo, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF ts").
		WithArgs("doc-1", date, "09:00-09:30").
		WillReturnRows(slotLockRows(true, false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_slots SET is_booked = $2")).
		WithArgs("slot-1", true, "pat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET version = version + 1")).
		WithArgs("sched-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: date,
		TimeSlot:        "09:00-09:30",
		Status:          models.AppointmentStatusPending,
	}

	require.NoError(t, repo.Book(context.Background(), appointment))
	assert.NotEmpty(t, appointment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBookNoSchedule(t *testing.T) {
	repo, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF ts").
		WithArgs("doc-1", date, "09:00-09:30").
		WillReturnRows(emptySlotLockRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schedule_days")).
		WithArgs("doc-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: date,
		TimeSlot:        "09:00-09:30",
	}

	err := repo.Book(context.Background(), appointment)
	assert.ErrorIs(t, err, ErrNoSchedule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBookSlotNotOffered(t *testing.T) {
	repo, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	// The week is scheduled but 12:00-12:30 was never declared: a conflict,
	// not a missing schedule.
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF ts").
		WithArgs("doc-1", date, "12:00-12:30").
		WillReturnRows(emptySlotLockRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schedule_days")).
		WithArgs("doc-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: date,
		TimeSlot:        "12:00-12:30",
	}

	err := repo.Book(context.Background(), appointment)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBookSlotBooked(t *testing.T) {
	repo, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF ts").
		WithArgs("doc-1", date, "09:00-09:30").
		WillReturnRows(slotLockRows(true, true))
	mock.ExpectRollback()

	appointment := &models.Appointment{
		PatientID:       "pat-2",
		DoctorID:        "doc-1",
		AppointmentDate: date,
		TimeSlot:        "09:00-09:30",
	}

	err := repo.Book(context.Background(), appointment)
	assert.ErrorIs(t, err, ErrSlotBooked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBookSlotUnavailable(t *testing.T) {
	repo, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF ts").
		WithArgs("doc-1", date, "09:00-09:30").
		WillReturnRows(slotLockRows(false, false))
	mock.ExpectRollback()

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: date,
		TimeSlot:        "09:00-09:30",
	}

	err := repo.Book(context.Background(), appointment)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryBookLosesInsertRace(t *testing.T) {
	repo, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF ts").
		WithArgs("doc-1", date, "09:00-09:30").
		WillReturnRows(slotLockRows(true, false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_slots SET is_booked = $2")).
		WithArgs("slot-1", true, "pat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET version = version + 1")).
		WithArgs("sched-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})
	mock.ExpectRollback()

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: date,
		TimeSlot:        "09:00-09:30",
	}

	err := repo.Book(context.Background(), appointment)
	assert.ErrorIs(t, err, ErrSlotBooked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
