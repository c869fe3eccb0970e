package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/medibook/clinic-api/internal/models"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

type availabilityScheduleRepository interface {
	FindByDoctorWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.Schedule, error)
}

type availabilityAppointmentRepository interface {
	BookedTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error)
}

// AvailabilityService resolves the open slots a patient can book for one
// doctor on one date. Reads only; the booking transaction remains the
// authority on whether a slot is actually free.
type AvailabilityService struct {
	schedules    availabilityScheduleRepository
	appointments availabilityAppointmentRepository
	cache        *CacheService
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(schedules availabilityScheduleRepository, appointments availabilityAppointmentRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		schedules:    schedules,
		appointments: appointments,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// ResolveAvailableSlots returns the bookable slot times for the doctor on the
// given civil date. A doctor with no schedule for that week, or a day marked
// unavailable, yields an empty list, not an error.
//
// A slot is open when the schedule declares it available, its booked flag is
// clear, and no non-cancelled appointment holds its time. The appointment
// check covers the window between a cancellation and the best-effort slot
// release.
func (s *AvailabilityService) ResolveAvailableSlots(ctx context.Context, doctorID, dateStr string) (*models.DaySlots, error) {
	date, err := weekdate.ParseDate(dateStr)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date, expected YYYY-MM-DD")
	}

	cacheKey := SlotCacheKey(doctorID, dateStr)
	if s.cache.Enabled() {
		var cached models.DaySlots
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	result := &models.DaySlots{DoctorID: doctorID, Date: dateStr, Slots: []string{}}

	schedule, err := s.schedules.FindByDoctorWeek(ctx, doctorID, weekdate.WeekStart(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	day := dayFor(schedule, date)
	if day == nil || !day.IsAvailable {
		return result, nil
	}

	bookedTimes, err := s.appointments.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked slots")
	}
	booked := make(map[string]struct{}, len(bookedTimes))
	for _, t := range bookedTimes {
		booked[t] = struct{}{}
	}

	for _, slot := range day.Slots {
		if !slot.IsAvailable || slot.IsBooked {
			continue
		}
		if _, taken := booked[slot.Time]; taken {
			continue
		}
		result.Slots = append(result.Slots, slot.Time)
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache availability", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return result, nil
}

// InvalidateDay drops the cached availability for one doctor and date.
func (s *AvailabilityService) InvalidateDay(ctx context.Context, doctorID string, date time.Time) {
	if !s.cache.Enabled() {
		return
	}
	key := SlotCacheKey(doctorID, date.In(weekdate.Zone).Format(weekdate.DateLayout))
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateDoctor drops all cached availability for one doctor.
func (s *AvailabilityService) InvalidateDoctor(ctx context.Context, doctorID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, SlotCachePattern(doctorID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("doctor_id", doctorID), zap.Error(err))
	}
}

func dayFor(schedule *models.Schedule, date time.Time) *models.DayAvailability {
	idx := weekdate.DayIndex(date)
	for i := range schedule.Days {
		if schedule.Days[i].DayIndex == idx {
			return &schedule.Days[i]
		}
	}
	return nil
}
