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
	"github.com/lib/pq"

	"github.com/medibook/clinic-api/internal/models"
)

// pgUniqueViolation is the Postgres error code for unique constraint failures.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-index violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}

// AppointmentRepository persists appointment records. The partial unique
// index on (doctor_id, appointment_date, time_slot) over non-cancelled rows
// is the storage-level double-booking guarantee.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const appointmentColumns = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.time_slot, a.status, a.notes, a.created_at, a.updated_at, p.full_name AS patient_name, du.full_name AS doctor_name`

const appointmentJoins = `FROM appointments a
JOIN users p ON p.id = a.patient_id
JOIN doctors d ON d.id = a.doctor_id
JOIN users du ON du.id = d.user_id`

// Create inserts a new appointment. A unique violation surfaces unchanged so
// callers can map it to a slot conflict.
func (r *AppointmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now

	const query = `INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, time_slot, status, notes, created_at, updated_at) VALUES (:id, :patient_id, :doctor_id, :appointment_date, :time_slot, :status, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, appointment); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE a.id = $1", appointmentColumns, appointmentJoins)
	var appointment models.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appointment, nil
}

// UpdateStatus transitions an appointment to a new status.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	const query = `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return nil
}

// Delete removes an appointment row.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// BookedTimes returns the time slots of all non-cancelled appointments for a
// doctor on one civil date.
func (r *AppointmentRepository) BookedTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	const query = `SELECT time_slot FROM appointments WHERE doctor_id = $1 AND appointment_date = $2 AND status <> 'cancelled' ORDER BY time_slot ASC`
	var times []string
	if err := r.db.SelectContext(ctx, &times, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("booked times: %w", err)
	}
	return times, nil
}

// ListActiveInRange returns non-cancelled appointments for a doctor whose
// date falls in the half-open interval [from, to).
func (r *AppointmentRepository) ListActiveInRange(ctx context.Context, doctorID string, from, to time.Time) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE a.doctor_id = $1 AND a.appointment_date >= $2 AND a.appointment_date < $3 AND a.status <> 'cancelled' ORDER BY a.appointment_date ASC, a.time_slot ASC", appointmentColumns, appointmentJoins)
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("list appointments in range: %w", err)
	}
	return appointments, nil
}

// List returns appointments with optional filtering and pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	baseQuery := appointmentJoins + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("a.patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("a.doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.ExcludeStatus != nil {
		conditions = append(conditions, fmt.Sprintf("a.status <> $%d", len(args)+1))
		args = append(args, *filter.ExcludeStatus)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.appointment_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.appointment_date < $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"appointment_date": "a.appointment_date",
		"created_at":       "a.created_at",
		"status":           "a.status",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "a.appointment_date"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, a.time_slot ASC LIMIT %d OFFSET %d", appointmentColumns, baseQuery, sortColumn, order, size, offset)
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appointments, total, nil
}
