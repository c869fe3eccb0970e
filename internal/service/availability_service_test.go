package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/clinic-api/internal/models"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

type scheduleLookupStub struct {
	schedule *models.Schedule
	err      error
	calls    int
}

func (s *scheduleLookupStub) FindByDoctorWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.Schedule, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.schedule, nil
}

type bookedTimesStub struct {
	times []string
	err   error
}

func (s bookedTimesStub) BookedTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	return s.times, s.err
}

func weekSchedule() *models.Schedule {
	weekStart := time.Date(2026, 6, 1, 0, 0, 0, 0, weekdate.Zone)
	return &models.Schedule{
		ID:            "sched-1",
		DoctorID:      "doc-1",
		WeekStartDate: weekStart,
		Days: []models.DayAvailability{
			{
				DayIndex:    2,
				Day:         weekdate.Wednesday,
				Date:        weekStart.AddDate(0, 0, 2),
				IsAvailable: true,
				Slots: []models.TimeSlot{
					{Time: "09:00-09:30", IsAvailable: true},
					{Time: "09:30-10:00", IsAvailable: true, IsBooked: true},
					{Time: "10:00-10:30", IsAvailable: false},
					{Time: "10:30-11:00", IsAvailable: true},
				},
			},
			{
				DayIndex:    3,
				Day:         weekdate.Thursday,
				Date:        weekStart.AddDate(0, 0, 3),
				IsAvailable: false,
			},
		},
	}
}

func TestAvailabilityResolveAvailableSlots(t *testing.T) {
	schedules := &scheduleLookupStub{schedule: weekSchedule()}
	appointments := bookedTimesStub{times: []string{"10:30-11:00"}}
	svc := NewAvailabilityService(schedules, appointments, nil, time.Minute, nil)

	result, err := svc.ResolveAvailableSlots(context.Background(), "doc-1", "2026-06-03")
	require.NoError(t, err)
	// 09:30 is flagged booked, 10:00 is not offered, 10:30 has an active
	// appointment despite a clear flag.
	assert.Equal(t, []string{"09:00-09:30"}, result.Slots)
}

func TestAvailabilityNoScheduleIsEmptyNotError(t *testing.T) {
	schedules := &scheduleLookupStub{err: sql.ErrNoRows}
	svc := NewAvailabilityService(schedules, bookedTimesStub{}, nil, time.Minute, nil)

	result, err := svc.ResolveAvailableSlots(context.Background(), "doc-1", "2026-06-03")
	require.NoError(t, err)
	assert.Empty(t, result.Slots)
	assert.NotNil(t, result.Slots)
}

func TestAvailabilityUnavailableDayIsEmpty(t *testing.T) {
	schedules := &scheduleLookupStub{schedule: weekSchedule()}
	svc := NewAvailabilityService(schedules, bookedTimesStub{}, nil, time.Minute, nil)

	result, err := svc.ResolveAvailableSlots(context.Background(), "doc-1", "2026-06-04")
	require.NoError(t, err)
	assert.Empty(t, result.Slots)
}

func TestAvailabilityInvalidDate(t *testing.T) {
	svc := NewAvailabilityService(&scheduleLookupStub{}, bookedTimesStub{}, nil, time.Minute, nil)

	_, err := svc.ResolveAvailableSlots(context.Background(), "doc-1", "03-06-2026")
	require.Error(t, err)
}

type memoryCacheStub struct {
	data map[string][]byte
}

func (s *memoryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *memoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = raw
	return nil
}

func (s *memoryCacheStub) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *memoryCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.data = make(map[string][]byte)
	return nil
}

func TestAvailabilityCachesResolvedSlots(t *testing.T) {
	schedules := &scheduleLookupStub{schedule: weekSchedule()}
	cache := NewCacheService(&memoryCacheStub{}, nil, time.Minute, nil, true)
	svc := NewAvailabilityService(schedules, bookedTimesStub{}, cache, time.Minute, nil)

	first, err := svc.ResolveAvailableSlots(context.Background(), "doc-1", "2026-06-03")
	require.NoError(t, err)

	second, err := svc.ResolveAvailableSlots(context.Background(), "doc-1", "2026-06-03")
	require.NoError(t, err)
	assert.Equal(t, first.Slots, second.Slots)
	assert.Equal(t, 1, schedules.calls)

	svc.InvalidateDay(context.Background(), "doc-1", time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone))
	_, err = svc.ResolveAvailableSlots(context.Background(), "doc-1", "2026-06-03")
	require.NoError(t, err)
	assert.Equal(t, 2, schedules.calls)
}
