package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/repository"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

type bookingStub struct {
	bookErr      error
	booked       []*models.Appointment
	releaseOK    bool
	releaseErr   error
	releaseCalls int
	releasedFor  string
}

func (s *bookingStub) Book(ctx context.Context, appointment *models.Appointment) error {
	if s.bookErr != nil {
		return s.bookErr
	}
	appointment.ID = "appt-new"
	s.booked = append(s.booked, appointment)
	return nil
}

func (s *bookingStub) ReleaseSlot(ctx context.Context, doctorID string, date time.Time, timeSlot, patientID string) (bool, error) {
	s.releaseCalls++
	s.releasedFor = patientID
	return s.releaseOK, s.releaseErr
}

type apptRepoStub struct {
	byID          map[string]*models.Appointment
	findErr       error
	statusUpdates map[string]models.AppointmentStatus
	deleteCalls   int
	listResult    []models.Appointment
	listTotal     int
}

func (s *apptRepoStub) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if appointment, ok := s.byID[id]; ok {
		copied := *appointment
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *apptRepoStub) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	if s.statusUpdates == nil {
		s.statusUpdates = make(map[string]models.AppointmentStatus)
	}
	s.statusUpdates[id] = status
	return nil
}

func (s *apptRepoStub) Delete(ctx context.Context, id string) error {
	s.deleteCalls++
	return nil
}

func (s *apptRepoStub) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	return s.listResult, s.listTotal, nil
}

type doctorStub struct {
	exists    bool
	existsErr error
	doctor    *models.Doctor
	findErr   error
}

func (s doctorStub) Exists(ctx context.Context, id string) (bool, error) {
	return s.exists, s.existsErr
}

func (s doctorStub) FindByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.doctor == nil {
		return nil, sql.ErrNoRows
	}
	return s.doctor, nil
}

func (s doctorStub) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	if s.doctor == nil {
		return nil, sql.ErrNoRows
	}
	return s.doctor, nil
}

type reviewStub struct {
	exists bool
	err    error
}

func (s reviewStub) ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error) {
	return s.exists, s.err
}

func newAppointmentService(booking *bookingStub, appts *apptRepoStub, doctors doctorStub, reviews reviewStub) *AppointmentService {
	availability := NewAvailabilityService(nil, nil, nil, 0, nil)
	svc := NewAppointmentService(booking, appts, doctors, reviews, availability, nil, nil, nil, nil, time.Hour)
	svc.now = func() time.Time {
		return time.Date(2026, 6, 1, 8, 0, 0, 0, weekdate.Zone)
	}
	return svc
}

func TestAppointmentServiceBook(t *testing.T) {
	booking := &bookingStub{}
	svc := newAppointmentService(booking, &apptRepoStub{}, doctorStub{exists: true}, reviewStub{})

	appointment, err := svc.Book(context.Background(), "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-06-03",
		TimeSlot: "09:00-09:30",
		Notes:    "first visit",
	})
	require.NoError(t, err)
	assert.Equal(t, "appt-new", appointment.ID)
	assert.Equal(t, models.AppointmentStatusPending, appointment.Status)
	assert.Equal(t, "pat-1", appointment.PatientID)
	require.Len(t, booking.booked, 1)
}

func TestAppointmentServiceBookPastDate(t *testing.T) {
	svc := newAppointmentService(&bookingStub{}, &apptRepoStub{}, doctorStub{exists: true}, reviewStub{})

	_, err := svc.Book(context.Background(), "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-05-31",
		TimeSlot: "09:00-09:30",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAppointmentServiceBookInvalidSlot(t *testing.T) {
	svc := newAppointmentService(&bookingStub{}, &apptRepoStub{}, doctorStub{exists: true}, reviewStub{})

	_, err := svc.Book(context.Background(), "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-06-03",
		TimeSlot: "9am-10am",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceBookUnknownDoctor(t *testing.T) {
	svc := newAppointmentService(&bookingStub{}, &apptRepoStub{}, doctorStub{exists: false}, reviewStub{})

	_, err := svc.Book(context.Background(), "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-missing",
		Date:     "2026-06-03",
		TimeSlot: "09:00-09:30",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceBookSlotTaken(t *testing.T) {
	booking := &bookingStub{bookErr: repository.ErrSlotBooked}
	svc := newAppointmentService(booking, &apptRepoStub{}, doctorStub{exists: true}, reviewStub{})

	_, err := svc.Book(context.Background(), "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-06-03",
		TimeSlot: "09:00-09:30",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrSlotTaken.Status, appErr.Status)
}

func TestAppointmentServiceBookNoSchedule(t *testing.T) {
	booking := &bookingStub{bookErr: repository.ErrNoSchedule}
	svc := newAppointmentService(booking, &apptRepoStub{}, doctorStub{exists: true}, reviewStub{})

	_, err := svc.Book(context.Background(), "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-06-03",
		TimeSlot: "09:00-09:30",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func pendingAppointment() *models.Appointment {
	return &models.Appointment{
		ID:              "appt-1",
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		AppointmentDate: time.Date(2026, 6, 3, 0, 0, 0, 0, weekdate.Zone),
		TimeSlot:        "09:00-09:30",
		Status:          models.AppointmentStatusPending,
	}
}

func TestAppointmentServiceCancel(t *testing.T) {
	booking := &bookingStub{releaseOK: true}
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	svc := newAppointmentService(booking, appts, doctorStub{}, reviewStub{})

	appointment, err := svc.Cancel(context.Background(), "appt-1", "pat-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCancelled, appointment.Status)
	assert.Equal(t, models.AppointmentStatusCancelled, appts.statusUpdates["appt-1"])
	assert.Equal(t, 1, booking.releaseCalls)
	assert.Equal(t, "pat-1", booking.releasedFor)
}

func TestAppointmentServiceCancelReleaseFailureStillCancels(t *testing.T) {
	booking := &bookingStub{releaseErr: sql.ErrConnDone}
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	svc := newAppointmentService(booking, appts, doctorStub{}, reviewStub{})

	appointment, err := svc.Cancel(context.Background(), "appt-1", "pat-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCancelled, appointment.Status)
}

func TestAppointmentServiceCancelWrongPatient(t *testing.T) {
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	svc := newAppointmentService(&bookingStub{}, appts, doctorStub{}, reviewStub{})

	_, err := svc.Cancel(context.Background(), "appt-1", "pat-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceCancelInsideWindow(t *testing.T) {
	appointment := pendingAppointment()
	appointment.AppointmentDate = time.Date(2026, 6, 1, 0, 0, 0, 0, weekdate.Zone)
	appointment.TimeSlot = "08:30-09:00"
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": appointment}}
	svc := newAppointmentService(&bookingStub{}, appts, doctorStub{}, reviewStub{})

	// now = 08:00, window = 1h, slot starts 08:30.
	_, err := svc.Cancel(context.Background(), "appt-1", "pat-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceCancelTerminal(t *testing.T) {
	appointment := pendingAppointment()
	appointment.Status = models.AppointmentStatusCompleted
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": appointment}}
	svc := newAppointmentService(&bookingStub{}, appts, doctorStub{}, reviewStub{})

	_, err := svc.Cancel(context.Background(), "appt-1", "pat-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceUpdateStatusByDoctor(t *testing.T) {
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	doctors := doctorStub{doctor: &models.Doctor{ID: "doc-1", UserID: "user-doc"}}
	svc := newAppointmentService(&bookingStub{}, appts, doctors, reviewStub{})

	appointment, err := svc.UpdateStatus(context.Background(), "appt-1", "user-doc", models.UpdateAppointmentStatusRequest{Status: models.AppointmentStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCompleted, appointment.Status)
}

func TestAppointmentServiceUpdateStatusForeignDoctor(t *testing.T) {
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	doctors := doctorStub{doctor: &models.Doctor{ID: "doc-2", UserID: "user-doc"}}
	svc := newAppointmentService(&bookingStub{}, appts, doctors, reviewStub{})

	_, err := svc.UpdateStatus(context.Background(), "appt-1", "user-doc", models.UpdateAppointmentStatusRequest{Status: models.AppointmentStatusCompleted})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceUpdateStatusTerminal(t *testing.T) {
	appointment := pendingAppointment()
	appointment.Status = models.AppointmentStatusCancelled
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": appointment}}
	doctors := doctorStub{doctor: &models.Doctor{ID: "doc-1", UserID: "user-doc"}}
	svc := newAppointmentService(&bookingStub{}, appts, doctors, reviewStub{})

	_, err := svc.UpdateStatus(context.Background(), "appt-1", "user-doc", models.UpdateAppointmentStatusRequest{Status: models.AppointmentStatusCompleted})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceDeleteBlockedByReview(t *testing.T) {
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	svc := newAppointmentService(&bookingStub{}, appts, doctorStub{}, reviewStub{exists: true})

	err := svc.Delete(context.Background(), "appt-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, appts.deleteCalls)
}

// clinicWeekStub backs both the booking and the availability side with one
// in-memory week so lifecycle tests observe their interplay.
type clinicWeekStub struct {
	schedule *models.Schedule
	appts    map[string]*models.Appointment
	seq      int
}

func newClinicWeekStub(schedule *models.Schedule) *clinicWeekStub {
	return &clinicWeekStub{schedule: schedule, appts: map[string]*models.Appointment{}}
}

func (s *clinicWeekStub) slotFor(date time.Time, timeSlot string) *models.TimeSlot {
	for i := range s.schedule.Days {
		day := &s.schedule.Days[i]
		if !day.Date.Equal(date) {
			continue
		}
		for j := range day.Slots {
			if day.Slots[j].Time == timeSlot {
				return &day.Slots[j]
			}
		}
	}
	return nil
}

func (s *clinicWeekStub) Book(ctx context.Context, appointment *models.Appointment) error {
	slot := s.slotFor(appointment.AppointmentDate, appointment.TimeSlot)
	if slot == nil {
		return repository.ErrNoSchedule
	}
	if !slot.IsAvailable {
		return repository.ErrSlotUnavailable
	}
	if slot.IsBooked {
		return repository.ErrSlotBooked
	}
	slot.IsBooked = true
	slot.PatientID = &appointment.PatientID
	s.seq++
	appointment.ID = fmt.Sprintf("appt-%d", s.seq)
	stored := *appointment
	s.appts[appointment.ID] = &stored
	return nil
}

func (s *clinicWeekStub) ReleaseSlot(ctx context.Context, doctorID string, date time.Time, timeSlot, patientID string) (bool, error) {
	slot := s.slotFor(date, timeSlot)
	if slot == nil || !slot.IsBooked || slot.PatientID == nil || *slot.PatientID != patientID {
		return false, nil
	}
	slot.IsBooked = false
	slot.PatientID = nil
	return true, nil
}

func (s *clinicWeekStub) FindByDoctorWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.Schedule, error) {
	return s.schedule, nil
}

func (s *clinicWeekStub) BookedTimes(ctx context.Context, doctorID string, date time.Time) ([]string, error) {
	var times []string
	for _, appointment := range s.appts {
		if appointment.DoctorID == doctorID && appointment.AppointmentDate.Equal(date) && !appointment.Status.Terminal() {
			times = append(times, appointment.TimeSlot)
		}
	}
	return times, nil
}

func (s *clinicWeekStub) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if appointment, ok := s.appts[id]; ok {
		copied := *appointment
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *clinicWeekStub) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	if appointment, ok := s.appts[id]; ok {
		appointment.Status = status
	}
	return nil
}

func (s *clinicWeekStub) Delete(ctx context.Context, id string) error {
	delete(s.appts, id)
	return nil
}

func (s *clinicWeekStub) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	return nil, 0, nil
}

func TestBookCancelAvailabilityRoundTrip(t *testing.T) {
	store := newClinicWeekStub(weekSchedule())
	availability := NewAvailabilityService(store, store, nil, 0, nil)
	svc := NewAppointmentService(store, store, doctorStub{exists: true}, reviewStub{}, availability, nil, nil, nil, nil, time.Hour)
	svc.now = func() time.Time {
		return time.Date(2026, 6, 1, 8, 0, 0, 0, weekdate.Zone)
	}
	ctx := context.Background()

	before, err := availability.ResolveAvailableSlots(ctx, "doc-1", "2026-06-03")
	require.NoError(t, err)
	assert.Contains(t, before.Slots, "09:00-09:30")

	appointment, err := svc.Book(ctx, "pat-1", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-06-03",
		TimeSlot: "09:00-09:30",
	})
	require.NoError(t, err)

	during, err := availability.ResolveAvailableSlots(ctx, "doc-1", "2026-06-03")
	require.NoError(t, err)
	assert.NotContains(t, during.Slots, "09:00-09:30")

	// The slot is held, so a second patient loses the race.
	_, err = svc.Book(ctx, "pat-2", models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     "2026-06-03",
		TimeSlot: "09:00-09:30",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErrors.FromError(err).Code)

	_, err = svc.Cancel(ctx, appointment.ID, "pat-1")
	require.NoError(t, err)

	after, err := availability.ResolveAvailableSlots(ctx, "doc-1", "2026-06-03")
	require.NoError(t, err)
	assert.Contains(t, after.Slots, "09:00-09:30")
}

func TestAppointmentServiceDeleteReleasesActiveSlot(t *testing.T) {
	booking := &bookingStub{releaseOK: true}
	appts := &apptRepoStub{byID: map[string]*models.Appointment{"appt-1": pendingAppointment()}}
	svc := newAppointmentService(booking, appts, doctorStub{}, reviewStub{})

	require.NoError(t, svc.Delete(context.Background(), "appt-1", "admin-1"))
	assert.Equal(t, 1, appts.deleteCalls)
	assert.Equal(t, 1, booking.releaseCalls)
}
