package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/clinic-api/internal/middleware"
	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/repository"
	"github.com/medibook/clinic-api/internal/service"
	"github.com/medibook/clinic-api/pkg/response"
	"github.com/medibook/clinic-api/pkg/weekdate"
)

type bookingExecutorMock struct {
	bookErr error
}

func (m *bookingExecutorMock) Book(ctx context.Context, appointment *models.Appointment) error {
	if m.bookErr != nil {
		return m.bookErr
	}
	appointment.ID = "appt-1"
	return nil
}

func (m *bookingExecutorMock) ReleaseSlot(ctx context.Context, doctorID string, date time.Time, timeSlot, patientID string) (bool, error) {
	return true, nil
}

type appointmentRepoMock struct{}

func (m *appointmentRepoMock) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	return &models.Appointment{ID: id, PatientID: "pat-1", DoctorID: "doc-1", Status: models.AppointmentStatusPending}, nil
}

func (m *appointmentRepoMock) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	return nil
}

func (m *appointmentRepoMock) Delete(ctx context.Context, id string) error { return nil }

func (m *appointmentRepoMock) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	return []models.Appointment{}, 0, nil
}

type doctorCheckerMock struct{}

func (m *doctorCheckerMock) Exists(ctx context.Context, id string) (bool, error) { return true, nil }

func (m *doctorCheckerMock) FindByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	return &models.Doctor{ID: "doc-1", UserID: userID}, nil
}

type reviewCheckerMock struct{}

func (m *reviewCheckerMock) ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error) {
	return false, nil
}

func newAppointmentHandler(booking *bookingExecutorMock) *AppointmentHandler {
	availability := service.NewAvailabilityService(nil, nil, nil, 0, nil)
	appointments := service.NewAppointmentService(
		booking,
		&appointmentRepoMock{},
		&doctorCheckerMock{},
		&reviewCheckerMock{},
		availability,
		nil,
		service.NewMetricsService(),
		nil,
		nil,
		time.Hour,
	)
	return NewAppointmentHandler(appointments, availability)
}

func bookRequestBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(models.BookAppointmentRequest{
		DoctorID: "doc-1",
		Date:     time.Now().In(weekdate.Zone).AddDate(0, 0, 7).Format(weekdate.DateLayout),
		TimeSlot: "09:00-09:30",
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestAppointmentHandlerBookRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAppointmentHandler(&bookingExecutorMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bookRequestBody(t))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Book(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAppointmentHandlerBookSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAppointmentHandler(&bookingExecutorMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bookRequestBody(t))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "pat-1", Role: models.RolePatient})

	handler.Book(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Appointment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "appt-1", envelope.Data.ID)
	assert.Equal(t, "pat-1", envelope.Data.PatientID)
	assert.Equal(t, models.AppointmentStatusPending, envelope.Data.Status)
}

func TestAppointmentHandlerBookSlotTaken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAppointmentHandler(&bookingExecutorMock{bookErr: repository.ErrSlotBooked})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bookRequestBody(t))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "pat-1", Role: models.RolePatient})

	handler.Book(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SLOT_TAKEN", envelope.Error.Code)
}

func TestAppointmentHandlerBookInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAppointmentHandler(&bookingExecutorMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "pat-1", Role: models.RolePatient})

	handler.Book(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandlerGetForbiddenForOtherPatient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAppointmentHandler(&bookingExecutorMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/appointments/appt-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "pat-2", Role: models.RolePatient})

	handler.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
