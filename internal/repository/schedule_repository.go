package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medibook/clinic-api/internal/models"
)

// ErrVersionConflict is returned when an optimistic version check fails on a
// schedule write, meaning another writer got there first.
var ErrVersionConflict = errors.New("schedule version conflict")

// ScheduleRepository persists weekly schedules with their days and slots.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const scheduleColumns = `id, doctor_id, week_start_date, week_number, year, version, created_at, updated_at`

// FindByID loads a schedule with its days and slots.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	if err := r.loadDays(ctx, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindByDoctorWeek loads the schedule for the week starting at weekStart,
// scoped to the given doctor.
func (r *ScheduleRepository) FindByDoctorWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE doctor_id = $1 AND week_start_date = $2", scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, doctorID, weekStart); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule by doctor week: %w", err)
	}
	if err := r.loadDays(ctx, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepository) loadDays(ctx context.Context, schedule *models.Schedule) error {
	const dayQuery = `SELECT id, schedule_id, day_index, day, date, is_available FROM schedule_days WHERE schedule_id = $1 ORDER BY day_index ASC`
	var days []models.DayAvailability
	if err := r.db.SelectContext(ctx, &days, dayQuery, schedule.ID); err != nil {
		return fmt.Errorf("load schedule days: %w", err)
	}

	const slotQuery = `SELECT ts.id, ts.schedule_day_id, ts.time_slot, ts.is_available, ts.is_booked, ts.patient_id
FROM schedule_slots ts
JOIN schedule_days sd ON sd.id = ts.schedule_day_id
WHERE sd.schedule_id = $1
ORDER BY sd.day_index ASC, ts.time_slot ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, slotQuery, schedule.ID); err != nil {
		return fmt.Errorf("load schedule slots: %w", err)
	}

	byDay := make(map[string][]models.TimeSlot, len(days))
	for _, slot := range slots {
		byDay[slot.ScheduleDayID] = append(byDay[slot.ScheduleDayID], slot)
	}
	for i := range days {
		days[i].Slots = byDay[days[i].ID]
		if days[i].Slots == nil {
			days[i].Slots = []models.TimeSlot{}
		}
	}
	schedule.Days = days
	return nil
}

// List returns schedules (headers only, no day detail) with pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	baseQuery := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Week > 0 {
		conditions = append(conditions, fmt.Sprintf("week_number = $%d", len(args)+1))
		args = append(args, filter.Week)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY week_start_date %s LIMIT %d OFFSET %d", scheduleColumns, baseQuery, order, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// Create stores a schedule and all of its days and slots in one transaction.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	schedule.Version = 1

	const query = `INSERT INTO schedules (id, doctor_id, week_start_date, week_number, year, version, created_at, updated_at) VALUES (:id, :doctor_id, :week_start_date, :week_number, :year, :version, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, schedule); err != nil {
		err = fmt.Errorf("create schedule: %w", err)
		return err
	}

	if err = r.insertDays(ctx, tx, schedule); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create schedule: %w", err)
	}
	return nil
}

// Update replaces the day and slot detail of a schedule. The write is guarded
// by an optimistic version check; ErrVersionConflict reports a lost race.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE schedules SET week_start_date = $2, week_number = $3, year = $4, version = version + 1, updated_at = $5 WHERE id = $1 AND version = $6`,
		schedule.ID, schedule.WeekStartDate, schedule.WeekNumber, schedule.Year, time.Now().UTC(), schedule.Version)
	if err != nil {
		err = fmt.Errorf("update schedule: %w", err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("update schedule rows affected: %w", err)
		return err
	}
	if affected == 0 {
		err = ErrVersionConflict
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM schedule_slots WHERE schedule_day_id IN (SELECT id FROM schedule_days WHERE schedule_id = $1)`,
		schedule.ID); err != nil {
		err = fmt.Errorf("clear schedule slots: %w", err)
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_days WHERE schedule_id = $1`, schedule.ID); err != nil {
		err = fmt.Errorf("clear schedule days: %w", err)
		return err
	}

	if err = r.insertDays(ctx, tx, schedule); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update schedule: %w", err)
	}
	schedule.Version++
	return nil
}

func (r *ScheduleRepository) insertDays(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	const dayQuery = `INSERT INTO schedule_days (id, schedule_id, day_index, day, date, is_available) VALUES (:id, :schedule_id, :day_index, :day, :date, :is_available)`
	const slotQuery = `INSERT INTO schedule_slots (id, schedule_day_id, time_slot, is_available, is_booked, patient_id) VALUES (:id, :schedule_day_id, :time_slot, :is_available, :is_booked, :patient_id)`

	for i := range schedule.Days {
		day := &schedule.Days[i]
		if day.ID == "" {
			day.ID = uuid.NewString()
		}
		day.ScheduleID = schedule.ID
		if _, err := sqlx.NamedExecContext(ctx, exec, dayQuery, day); err != nil {
			return fmt.Errorf("insert schedule day: %w", err)
		}
		for j := range day.Slots {
			slot := &day.Slots[j]
			if slot.ID == "" {
				slot.ID = uuid.NewString()
			}
			slot.ScheduleDayID = day.ID
			if _, err := sqlx.NamedExecContext(ctx, exec, slotQuery, slot); err != nil {
				return fmt.Errorf("insert schedule slot: %w", err)
			}
		}
	}
	return nil
}

// Delete removes a schedule with its days and slots.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM schedule_slots WHERE schedule_day_id IN (SELECT id FROM schedule_days WHERE schedule_id = $1)`, id); err != nil {
		err = fmt.Errorf("delete schedule slots: %w", err)
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_days WHERE schedule_id = $1`, id); err != nil {
		err = fmt.Errorf("delete schedule days: %w", err)
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		err = fmt.Errorf("delete schedule: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete schedule: %w", err)
	}
	return nil
}

// HasBookedSlots reports whether any slot of the schedule is booked.
func (r *ScheduleRepository) HasBookedSlots(ctx context.Context, scheduleID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM schedule_slots ts
JOIN schedule_days sd ON sd.id = ts.schedule_day_id
WHERE sd.schedule_id = $1 AND ts.is_booked = TRUE)`
	var booked bool
	if err := r.db.GetContext(ctx, &booked, query, scheduleID); err != nil {
		return false, fmt.Errorf("check booked slots: %w", err)
	}
	return booked, nil
}

// SlotRow is the locked view of one bookable slot used by the booking
// transaction.
type SlotRow struct {
	ID           string  `db:"id"`
	ScheduleID   string  `db:"schedule_id"`
	IsAvailable  bool    `db:"is_available"`
	IsBooked     bool    `db:"is_booked"`
	PatientID    *string `db:"patient_id"`
	DayAvailable bool    `db:"day_available"`
}

// LockSlot selects the slot for (doctor, date, time) inside the week-scoped
// schedule and locks the row for the duration of the transaction. sql.ErrNoRows
// means the schedule declares no such slot.
func (r *ScheduleRepository) LockSlot(ctx context.Context, exec sqlx.ExtContext, doctorID string, date time.Time, timeSlot string) (*SlotRow, error) {
	const query = `SELECT ts.id, sd.schedule_id, ts.is_available, ts.is_booked, ts.patient_id, sd.is_available AS day_available
FROM schedule_slots ts
JOIN schedule_days sd ON sd.id = ts.schedule_day_id
JOIN schedules s ON s.id = sd.schedule_id
WHERE s.doctor_id = $1 AND sd.date = $2 AND ts.time_slot = $3
FOR UPDATE OF ts`
	var row SlotRow
	if err := sqlx.GetContext(ctx, r.exec(exec), &row, query, doctorID, date, timeSlot); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	return &row, nil
}

// SetSlotBooking flips the denormalized booking state of one slot.
func (r *ScheduleRepository) SetSlotBooking(ctx context.Context, exec sqlx.ExtContext, slotID string, patientID *string) error {
	const query = `UPDATE schedule_slots SET is_booked = $2, patient_id = $3 WHERE id = $1`
	booked := patientID != nil
	if _, err := r.exec(exec).ExecContext(ctx, query, slotID, booked, patientID); err != nil {
		return fmt.Errorf("set slot booking: %w", err)
	}
	return nil
}

// BumpVersion advances the schedule version so the editor's optimistic check
// observes slot writes made outside ScheduleRepository.Update.
func (r *ScheduleRepository) BumpVersion(ctx context.Context, exec sqlx.ExtContext, scheduleID string) error {
	const query = `UPDATE schedules SET version = version + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, scheduleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("bump schedule version: %w", err)
	}
	return nil
}

// ReleaseSlot clears the booking flag for (doctor, date, time), but only while
// the slot still belongs to the given patient: a rebooked slot is left alone.
// The parent schedule version advances in the same statement. It reports
// whether a slot row was actually updated so callers can log degraded cleanup.
func (r *ScheduleRepository) ReleaseSlot(ctx context.Context, doctorID string, date time.Time, timeSlot, patientID string) (bool, error) {
	const query = `WITH released AS (
UPDATE schedule_slots ts SET is_booked = FALSE, patient_id = NULL
FROM schedule_days sd, schedules s
WHERE ts.schedule_day_id = sd.id AND sd.schedule_id = s.id
AND s.doctor_id = $1 AND sd.date = $2 AND ts.time_slot = $3 AND ts.patient_id = $4
RETURNING sd.schedule_id
)
UPDATE schedules SET version = version + 1, updated_at = $5
WHERE id IN (SELECT schedule_id FROM released)`
	res, err := r.db.ExecContext(ctx, query, doctorID, date, timeSlot, patientID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release slot rows affected: %w", err)
	}
	return affected > 0, nil
}

// DayExists reports whether any schedule of the doctor declares the given
// date, regardless of availability.
func (r *ScheduleRepository) DayExists(ctx context.Context, exec sqlx.ExtContext, doctorID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM schedule_days sd
JOIN schedules s ON s.id = sd.schedule_id
WHERE s.doctor_id = $1 AND sd.date = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, doctorID, date); err != nil {
		return false, fmt.Errorf("check schedule day: %w", err)
	}
	return exists, nil
}
