package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/repository"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

type bookingExecutor interface {
	Book(ctx context.Context, appointment *models.Appointment) error
	ReleaseSlot(ctx context.Context, doctorID string, date time.Time, timeSlot, patientID string) (bool, error)
}

type appointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
}

type doctorExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
	FindByUserID(ctx context.Context, userID string) (*models.Doctor, error)
}

type reviewExistenceChecker interface {
	ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error)
}

// AppointmentService coordinates the booking lifecycle: book, cancel,
// doctor status transitions and admin deletion.
type AppointmentService struct {
	booking      bookingExecutor
	appointments appointmentRepository
	doctors      doctorExistenceChecker
	reviews      reviewExistenceChecker
	availability *AvailabilityService
	audit        auditRecorder
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cancelWindow time.Duration
	now          func() time.Time
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(
	booking bookingExecutor,
	appointments appointmentRepository,
	doctors doctorExistenceChecker,
	reviews reviewExistenceChecker,
	availability *AvailabilityService,
	audit auditRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cancelWindow time.Duration,
) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cancelWindow <= 0 {
		cancelWindow = time.Hour
	}
	return &AppointmentService{
		booking:      booking,
		appointments: appointments,
		doctors:      doctors,
		reviews:      reviews,
		availability: availability,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cancelWindow: cancelWindow,
		now:          func() time.Time { return time.Now().In(weekdate.Zone) },
	}
}

// Book places a pending appointment for the patient. The slot flag and the
// appointment row commit in one transaction; losing a race on the slot
// surfaces as a conflict, never a double booking.
func (s *AppointmentService) Book(ctx context.Context, patientID string, req models.BookAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !weekdate.ValidSlot(req.TimeSlot) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time slot must match HH:MM-HH:MM with start before end")
	}

	date, err := weekdate.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}
	if date.Before(weekdate.Normalize(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot book an appointment in the past")
	}

	exists, err := s.doctors.Exists(ctx, req.DoctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check doctor")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
	}

	appointment := &models.Appointment{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: date,
		TimeSlot:        req.TimeSlot,
		Status:          models.AppointmentStatusPending,
		Notes:           req.Notes,
	}

	if err := s.booking.Book(ctx, appointment); err != nil {
		switch {
		case errors.Is(err, repository.ErrNoSchedule):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor has no schedule for this date")
		case errors.Is(err, repository.ErrSlotUnavailable):
			s.metrics.RecordBookingConflict()
			return nil, appErrors.Clone(appErrors.ErrConflict, "slot is not available for booking")
		case errors.Is(err, repository.ErrSlotBooked):
			s.metrics.RecordBookingConflict()
			return nil, appErrors.Clone(appErrors.ErrSlotTaken, "slot is already booked")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book appointment")
		}
	}

	s.metrics.RecordBooking()
	s.availability.InvalidateDay(ctx, appointment.DoctorID, appointment.AppointmentDate)
	s.recordAudit(patientID, models.AuditActionAppointmentBook, appointment)

	return appointment, nil
}

// Cancel lets the owning patient cancel a pending appointment. The status
// change is authoritative; releasing the schedule slot is best-effort.
func (s *AppointmentService) Cancel(ctx context.Context, appointmentID, actingPatientID string) (*models.Appointment, error) {
	appointment, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appointment.PatientID != actingPatientID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another patient")
	}
	if appointment.Status != models.AppointmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending appointments can be cancelled")
	}

	now := s.now()
	if appointment.AppointmentDate.Before(weekdate.Normalize(now)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot cancel a past appointment")
	}
	start, err := weekdate.SlotStart(appointment.AppointmentDate, appointment.TimeSlot)
	if err == nil && now.Add(s.cancelWindow).After(start) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment starts too soon to cancel")
	}

	if err := s.appointments.UpdateStatus(ctx, appointment.ID, models.AppointmentStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel appointment")
	}
	appointment.Status = models.AppointmentStatusCancelled

	s.releaseSlot(ctx, appointment)
	s.metrics.RecordCancellation()
	s.availability.InvalidateDay(ctx, appointment.DoctorID, appointment.AppointmentDate)
	s.recordAudit(actingPatientID, models.AuditActionAppointmentCancel, appointment)

	return appointment, nil
}

// UpdateStatus lets the owning doctor complete or cancel a pending
// appointment. Terminal states are immutable.
func (s *AppointmentService) UpdateStatus(ctx context.Context, appointmentID, actingUserID string, req models.UpdateAppointmentStatusRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	appointment, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	doctor, err := s.doctors.FindByUserID(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no doctor profile for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if doctor.ID != appointment.DoctorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another doctor")
	}

	if appointment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment is already in a terminal state")
	}

	if err := s.appointments.UpdateStatus(ctx, appointment.ID, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	appointment.Status = req.Status

	if req.Status == models.AppointmentStatusCancelled {
		s.releaseSlot(ctx, appointment)
		s.metrics.RecordCancellation()
	}
	s.availability.InvalidateDay(ctx, appointment.DoctorID, appointment.AppointmentDate)
	s.recordAudit(actingUserID, models.AuditActionAppointmentStatus, appointment)

	return appointment, nil
}

// Delete removes an appointment outright (admin only). An appointment with a
// review stays: the review's referential integrity wins.
func (s *AppointmentService) Delete(ctx context.Context, appointmentID, actingUserID string) error {
	appointment, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}

	reviewed, err := s.reviews.ExistsByAppointment(ctx, appointment.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check reviews")
	}
	if reviewed {
		return appErrors.Clone(appErrors.ErrConflict, "appointment has a review and cannot be deleted")
	}

	if err := s.appointments.Delete(ctx, appointment.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}

	if appointment.Status == models.AppointmentStatusPending {
		s.releaseSlot(ctx, appointment)
	}
	s.availability.InvalidateDay(ctx, appointment.DoctorID, appointment.AppointmentDate)
	s.recordAudit(actingUserID, models.AuditActionAppointmentDelete, appointment)

	return nil
}

// Get loads one appointment, restricted to its patient, its doctor or an
// admin at the handler layer.
func (s *AppointmentService) Get(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	return s.loadAppointment(ctx, appointmentID)
}

// List returns appointments matching the filter with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	appointments, total, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return appointments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *AppointmentService) loadAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return appointment, nil
}

func (s *AppointmentService) releaseSlot(ctx context.Context, appointment *models.Appointment) {
	released, err := s.booking.ReleaseSlot(ctx, appointment.DoctorID, appointment.AppointmentDate, appointment.TimeSlot, appointment.PatientID)
	if err != nil {
		s.logger.Warn("failed to release schedule slot",
			zap.String("appointment_id", appointment.ID),
			zap.Error(err))
		return
	}
	if !released {
		s.logger.Warn("no schedule slot found to release",
			zap.String("appointment_id", appointment.ID),
			zap.String("doctor_id", appointment.DoctorID),
			zap.String("time_slot", appointment.TimeSlot))
	}
}

func (s *AppointmentService) recordAudit(actorID, action string, appointment *models.Appointment) {
	if s.audit == nil {
		return
	}
	detail, _ := json.Marshal(map[string]string{
		"doctor_id": appointment.DoctorID,
		"date":      appointment.AppointmentDate.Format(weekdate.DateLayout),
		"time_slot": appointment.TimeSlot,
		"status":    string(appointment.Status),
	})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "appointments",
		ResourceID: &appointment.ID,
		Detail:     detail,
	})
}
