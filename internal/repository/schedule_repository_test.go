package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryFindByDoctorWeek(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	weekStart := time.Date(2026, 6, 1, 0, 0, 0, 0, weekdate.Zone)

	scheduleRows := sqlmock.NewRows([]string{"id", "doctor_id", "week_start_date", "week_number", "year", "version", "created_at", "updated_at"}).
		AddRow("sched-1", "doc-1", weekStart, 23, 2026, 2, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doctor_id, week_start_date, week_number, year, version, created_at, updated_at FROM schedules WHERE doctor_id = $1 AND week_start_date = $2")).
		WithArgs("doc-1", weekStart).
		WillReturnRows(scheduleRows)

	dayRows := sqlmock.NewRows([]string{"id", "schedule_id", "day_index", "day", "date", "is_available"}).
		AddRow("day-1", "sched-1", 0, "MONDAY", weekStart, true).
		AddRow("day-2", "sched-1", 1, "TUESDAY", weekStart.AddDate(0, 0, 1), false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, schedule_id, day_index, day, date, is_available FROM schedule_days WHERE schedule_id = $1 ORDER BY day_index ASC")).
		WithArgs("sched-1").
		WillReturnRows(dayRows)

	slotRows := sqlmock.NewRows([]string{"id", "schedule_day_id", "time_slot", "is_available", "is_booked", "patient_id"}).
		AddRow("slot-1", "day-1", "09:00-09:30", true, false, nil).
		AddRow("slot-2", "day-1", "09:30-10:00", true, true, "pat-1")
	mock.ExpectQuery("SELECT ts.id, ts.schedule_day_id, ts.time_slot").
		WithArgs("sched-1").
		WillReturnRows(slotRows)

	schedule, err := repo.FindByDoctorWeek(context.Background(), "doc-1", weekStart)
	require.NoError(t, err)
	require.Len(t, schedule.Days, 2)
	assert.Equal(t, weekdate.DayLabel("MONDAY"), schedule.Days[0].Day)
	assert.Len(t, schedule.Days[0].Slots, 2)
	assert.True(t, schedule.Days[0].Slots[1].IsBooked)
	assert.Empty(t, schedule.Days[1].Slots)
	assert.NotNil(t, schedule.Days[1].Slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedules")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_days")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_slots")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	weekStart := time.Date(2026, 6, 1, 0, 0, 0, 0, weekdate.Zone)
	schedule := &models.Schedule{
		DoctorID:      "doc-1",
		WeekStartDate: weekStart,
		WeekNumber:    23,
		Year:          2026,
		Days: []models.DayAvailability{
			{
				DayIndex:    0,
				Day:         "MONDAY",
				Date:        weekStart,
				IsAvailable: true,
				Slots: []models.TimeSlot{
					{Time: "09:00-09:30", IsAvailable: true},
				},
			},
		},
	}

	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, 1, schedule.Version)
	assert.Equal(t, schedule.ID, schedule.Days[0].ScheduleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdateVersionConflict(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	schedule := &models.Schedule{
		ID:            "sched-1",
		WeekStartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, weekdate.Zone),
		WeekNumber:    23,
		Year:          2026,
		Version:       2,
	}

	err := repo.Update(context.Background(), schedule)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 2, schedule.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReleaseSlot(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	date := time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone)

	mock.ExpectExec(`(?s)ts\.patient_id = \$4.*SET version = version \+ 1`).
		WithArgs("doc-1", date, "10:00-10:30", "pat-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	released, err := repo.ReleaseSlot(context.Background(), "doc-1", date, "10:00-10:30", "pat-1")
	require.NoError(t, err)
	assert.True(t, released)

	// A slot rebooked by someone else no longer matches the patient
	// predicate and stays flagged.
	mock.ExpectExec(regexp.QuoteMeta("ts.patient_id = $4")).
		WithArgs("doc-1", date, "10:00-10:30", "pat-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	released, err = repo.ReleaseSlot(context.Background(), "doc-1", date, "10:00-10:30", "pat-2")
	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryHasBookedSlots(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("sched-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	booked, err := repo.HasBookedSlots(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.True(t, booked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
