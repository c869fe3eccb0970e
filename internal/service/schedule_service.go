package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/repository"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/export"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

type scheduleStore interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	FindByDoctorWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
	HasBookedSlots(ctx context.Context, scheduleID string) (bool, error)
}

type scheduleAppointmentStore interface {
	ListActiveInRange(ctx context.Context, doctorID string, from, to time.Time) ([]models.Appointment, error)
}

type scheduleDoctorStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Doctor, error)
}

// ScheduleService manages doctors' weekly schedules: create, edit with
// optimistic versioning, delete, and the printable weekly overview.
type ScheduleService struct {
	schedules    scheduleStore
	appointments scheduleAppointmentStore
	doctors      scheduleDoctorStore
	availability *AvailabilityService
	audit        auditRecorder
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(
	schedules scheduleStore,
	appointments scheduleAppointmentStore,
	doctors scheduleDoctorStore,
	availability *AvailabilityService,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{
		schedules:    schedules,
		appointments: appointments,
		doctors:      doctors,
		availability: availability,
		audit:        audit,
		validator:    validate,
		logger:       logger,
	}
}

// Create stores a new weekly schedule for a doctor. One schedule per doctor
// and week; the unique index settles concurrent creates.
func (s *ScheduleService) Create(ctx context.Context, actingUserID string, req models.ScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	exists, err := s.doctors.Exists(ctx, req.DoctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check doctor")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
	}

	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.schedules.FindByDoctorWeek(ctx, schedule.DoctorID, schedule.WeekStartDate); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule already exists for this week")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
	}

	if err := s.schedules.Create(ctx, schedule); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule already exists for this week")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	s.availability.InvalidateDoctor(ctx, schedule.DoctorID)
	s.recordAudit(actingUserID, models.AuditActionScheduleCreate, schedule)

	return schedule, nil
}

// Update replaces a schedule's availability. The incoming version must match
// the stored one, and every non-cancelled appointment in the week must keep
// its day and slot in the new layout. Booking-side slot writes bump the same
// version, so an edit racing a booking fails the check rather than replacing
// the week from a stale snapshot.
func (s *ScheduleService) Update(ctx context.Context, scheduleID, actingUserID string, req models.ScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	existing, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if existing.DoctorID != req.DoctorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule doctor cannot change")
	}

	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	if !schedule.WeekStartDate.Equal(existing.WeekStartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule week cannot change")
	}
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt
	schedule.Version = req.Version

	if err := s.reconcileBookings(ctx, schedule); err != nil {
		return nil, err
	}

	if err := s.schedules.Update(ctx, schedule); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule was modified by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}

	s.availability.InvalidateDoctor(ctx, schedule.DoctorID)
	s.recordAudit(actingUserID, models.AuditActionScheduleUpdate, schedule)

	return schedule, nil
}

// Delete removes a schedule. A week holding any booked slot or active
// appointment cannot be deleted.
func (s *ScheduleService) Delete(ctx context.Context, scheduleID, actingUserID string) error {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}

	booked, err := s.schedules.HasBookedSlots(ctx, schedule.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booked slots")
	}
	if booked {
		return appErrors.Clone(appErrors.ErrConflict, "schedule has booked slots")
	}

	from, to := weekdate.WeekRange(schedule.WeekStartDate)
	active, err := s.appointments.ListActiveInRange(ctx, schedule.DoctorID, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check appointments")
	}
	if len(active) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "schedule week has active appointments")
	}

	if err := s.schedules.Delete(ctx, schedule.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}

	s.availability.InvalidateDoctor(ctx, schedule.DoctorID)
	s.recordAudit(actingUserID, models.AuditActionScheduleDelete, schedule)

	return nil
}

// Get loads one schedule with its full day and slot detail.
func (s *ScheduleService) Get(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	return s.loadSchedule(ctx, scheduleID)
}

// GetByDoctorWeek loads the schedule covering the week of the given date.
func (s *ScheduleService) GetByDoctorWeek(ctx context.Context, doctorID, dateStr string) (*models.Schedule, error) {
	date, err := weekdate.ParseDate(dateStr)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}
	schedule, err := s.schedules.FindByDoctorWeek(ctx, doctorID, weekdate.WeekStart(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no schedule for this week")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// List returns schedule headers matching the filter.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ExportWeekPDF renders a doctor's weekly schedule as a printable PDF.
func (s *ScheduleService) ExportWeekPDF(ctx context.Context, scheduleID string) ([]byte, string, error) {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, "", err
	}
	doctor, err := s.doctors.FindByID(ctx, schedule.DoctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}

	days := make([]export.ScheduleDay, 0, len(schedule.Days))
	for _, day := range schedule.Days {
		slots := make([]export.ScheduleSlot, 0, len(day.Slots))
		for _, slot := range day.Slots {
			if !slot.IsAvailable {
				continue
			}
			slots = append(slots, export.ScheduleSlot{Time: slot.Time, Booked: slot.IsBooked})
		}
		days = append(days, export.ScheduleDay{
			Label:     string(day.Day),
			Date:      day.Date.Format(weekdate.DateLayout),
			Available: day.IsAvailable,
			Slots:     slots,
		})
	}

	weekStart := schedule.WeekStartDate.Format(weekdate.DateLayout)
	pdf, err := export.WeeklySchedulePDF(doctor.FullName, weekStart, days)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule PDF")
	}
	filename := fmt.Sprintf("schedule-%s-%s.pdf", schedule.DoctorID, weekStart)
	return pdf, filename, nil
}

// buildSchedule validates the submitted availability and recomputes every
// day label and date from the week start. Client-supplied day names and
// dates must agree with the week but are never trusted as stored values.
func (s *ScheduleService) buildSchedule(req models.ScheduleRequest) (*models.Schedule, error) {
	weekDate, err := weekdate.ParseDate(req.WeekStartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week start date, expected YYYY-MM-DD")
	}
	weekStart := weekdate.WeekStart(weekDate)
	year, week := weekdate.ISOWeek(weekStart)

	schedule := &models.Schedule{
		DoctorID:      req.DoctorID,
		WeekStartDate: weekStart,
		WeekNumber:    week,
		Year:          year,
		Days:          make([]models.DayAvailability, 0, len(req.Availability)),
	}

	seen := make(map[int]bool, len(req.Availability))
	for _, input := range req.Availability {
		label, idx, err := resolveDayLabel(input.Day)
		if err != nil {
			return nil, err
		}
		if seen[idx] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate day %s", label))
		}
		seen[idx] = true

		expectedDate := weekStart.AddDate(0, 0, idx)
		submittedDate, err := weekdate.ParseDate(input.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid date for %s", label))
		}
		if !weekdate.Normalize(submittedDate).Equal(expectedDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %s does not fall on %s of the week", input.Date, label))
		}

		if !input.IsAvailable && len(input.TimeSlots) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unavailable day %s must not declare slots", label))
		}

		slots := make([]models.TimeSlot, 0, len(input.TimeSlots))
		slotSeen := make(map[string]bool, len(input.TimeSlots))
		for _, raw := range input.TimeSlots {
			if !weekdate.ValidSlot(raw) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid time slot %q", raw))
			}
			if slotSeen[raw] {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate time slot %q on %s", raw, label))
			}
			slotSeen[raw] = true
			slots = append(slots, models.TimeSlot{Time: raw, IsAvailable: true})
		}

		schedule.Days = append(schedule.Days, models.DayAvailability{
			DayIndex:    idx,
			Day:         label,
			Date:        expectedDate,
			IsAvailable: input.IsAvailable,
			Slots:       slots,
		})
	}

	if len(seen) != 7 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "availability must cover all seven days")
	}

	return schedule, nil
}

// reconcileBookings carries the booked state of every active appointment in
// the week into the incoming layout. An appointment whose day goes
// unavailable or whose slot disappears makes the edit a conflict.
func (s *ScheduleService) reconcileBookings(ctx context.Context, schedule *models.Schedule) error {
	from, to := weekdate.WeekRange(schedule.WeekStartDate)
	active, err := s.appointments.ListActiveInRange(ctx, schedule.DoctorID, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}

	// Booked flags always derive from the appointments table, never from
	// client input.
	for i := range schedule.Days {
		for j := range schedule.Days[i].Slots {
			schedule.Days[i].Slots[j].IsBooked = false
			schedule.Days[i].Slots[j].PatientID = nil
		}
	}

	for _, appointment := range active {
		idx := weekdate.DayIndex(appointment.AppointmentDate)
		placed := false
		for i := range schedule.Days {
			day := &schedule.Days[i]
			if day.DayIndex != idx {
				continue
			}
			if !day.IsAvailable {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("day %s has a booked appointment and cannot go unavailable", day.Day))
			}
			for j := range day.Slots {
				slot := &day.Slots[j]
				if slot.Time != appointment.TimeSlot {
					continue
				}
				patientID := appointment.PatientID
				slot.IsBooked = true
				slot.PatientID = &patientID
				placed = true
				break
			}
			break
		}
		if !placed {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("slot %s on %s is booked and cannot be removed", appointment.TimeSlot, appointment.AppointmentDate.Format(weekdate.DateLayout)))
		}
	}

	return nil
}

func (s *ScheduleService) loadSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

func (s *ScheduleService) recordAudit(actorID, action string, schedule *models.Schedule) {
	if s.audit == nil {
		return
	}
	detail, _ := json.Marshal(map[string]interface{}{
		"doctor_id":  schedule.DoctorID,
		"week_start": schedule.WeekStartDate.Format(weekdate.DateLayout),
		"version":    schedule.Version,
	})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "schedules",
		ResourceID: &schedule.ID,
		Detail:     detail,
	})
}

func resolveDayLabel(raw string) (weekdate.DayLabel, int, error) {
	for idx := 0; idx < 7; idx++ {
		label, err := weekdate.LabelAt(idx)
		if err != nil {
			return "", 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "day table out of range")
		}
		if string(label) == raw {
			return label, idx, nil
		}
	}
	return "", 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", raw))
}
