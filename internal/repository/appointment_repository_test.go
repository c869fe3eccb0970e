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

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone),
		TimeSlot:        "09:00-09:30",
		Status:          models.AppointmentStatusPending,
	}

	require.NoError(t, repo.Create(context.Background(), nil, appointment))
	assert.NotEmpty(t, appointment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: pgUniqueViolation, Constraint: "uq_appointments_active_slot"})

	appointment := &models.Appointment{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone),
		TimeSlot:        "09:00-09:30",
		Status:          models.AppointmentStatusPending,
	}

	err := repo.Create(context.Background(), nil, appointment)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryBookedTimes(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	rows := sqlmock.NewRows([]string{"time_slot"}).
		AddRow("09:00-09:30").
		AddRow("14:00-14:30")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT time_slot FROM appointments WHERE doctor_id = $1 AND appointment_date = $2 AND status <> 'cancelled' ORDER BY time_slot ASC")).
		WithArgs("doc-1", date).
		WillReturnRows(rows)

	times, err := repo.BookedTimes(context.Background(), "doc-1", date)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-09:30", "14:00-14:30"}, times)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status = $2")).
		WithArgs("appt-1", models.AppointmentStatusCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "appt-1", models.AppointmentStatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "appointment_date", "time_slot", "status", "notes", "created_at", "updated_at", "patient_name", "doctor_name"}).
		AddRow("appt-1", "pat-1", "doc-1", time.Now(), "09:00-09:30", "pending", "", time.Now(), time.Now(), "Jane Roe", "Dr. Smith")
	mock.ExpectQuery("SELECT a.id, a.patient_id").
		WithArgs("pat-1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("pat-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	appointments, total, err := repo.List(context.Background(), models.AppointmentFilter{PatientID: "pat-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, appointments, 1)
	assert.Equal(t, "Dr. Smith", appointments[0].DoctorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
