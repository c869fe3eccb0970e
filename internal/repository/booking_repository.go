package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medibook/clinic-api/internal/models"
)

// Booking outcome errors. The service layer maps these onto the API error
// taxonomy.
var (
	// ErrNoSchedule means the doctor has no schedule covering the requested
	// date.
	ErrNoSchedule = errors.New("no schedule for doctor and date")
	// ErrSlotUnavailable means the schedule covers the date but the slot is
	// not offered, the day is off, or the slot is flagged unavailable.
	ErrSlotUnavailable = errors.New("slot not available for booking")
	// ErrSlotBooked means another patient holds the slot.
	ErrSlotBooked = errors.New("slot already booked")
)

// BookingRepository executes the two-store booking write as one transaction:
// the schedule slot flag and the appointment row commit together or not at
// all. The appointment unique index stays authoritative; the locked slot row
// only serializes writers touching the same week.
type BookingRepository struct {
	db           *sqlx.DB
	schedules    *ScheduleRepository
	appointments *AppointmentRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB, schedules *ScheduleRepository, appointments *AppointmentRepository) *BookingRepository {
	return &BookingRepository{db: db, schedules: schedules, appointments: appointments}
}

// Book atomically marks the schedule slot booked and inserts the appointment.
func (r *BookingRepository) Book(ctx context.Context, appointment *models.Appointment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var slot *SlotRow
	slot, err = r.schedules.LockSlot(ctx, tx, appointment.DoctorID, appointment.AppointmentDate, appointment.TimeSlot)
	if err != nil {
		if err == sql.ErrNoRows {
			// Tell a missing week apart from a week that just never
			// offered this slot.
			var covered bool
			covered, err = r.schedules.DayExists(ctx, tx, appointment.DoctorID, appointment.AppointmentDate)
			if err != nil {
				return err
			}
			if covered {
				err = ErrSlotUnavailable
			} else {
				err = ErrNoSchedule
			}
		}
		return err
	}
	if !slot.DayAvailable || !slot.IsAvailable {
		err = ErrSlotUnavailable
		return err
	}
	if slot.IsBooked {
		err = ErrSlotBooked
		return err
	}

	if err = r.schedules.SetSlotBooking(ctx, tx, slot.ID, &appointment.PatientID); err != nil {
		return err
	}

	// Advance the schedule version inside the same transaction so a
	// concurrent editor update fails its optimistic check instead of
	// replacing the slots from a snapshot that predates this booking.
	if err = r.schedules.BumpVersion(ctx, tx, slot.ScheduleID); err != nil {
		return err
	}

	if err = r.appointments.Create(ctx, tx, appointment); err != nil {
		// The unique index catches a racing booking that committed between
		// our availability read and this insert.
		if IsUniqueViolation(err) {
			err = ErrSlotBooked
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// ReleaseSlot clears the slot flag after a cancellation, scoped to the
// cancelling patient so a racing rebooking keeps its flag. It is deliberately
// outside the cancellation write: the appointment status change is
// authoritative and must not be blocked by schedule-side cleanup.
func (r *BookingRepository) ReleaseSlot(ctx context.Context, doctorID string, date time.Time, timeSlot, patientID string) (bool, error) {
	return r.schedules.ReleaseSlot(ctx, doctorID, date, timeSlot, patientID)
}
