package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/clinic-api/internal/models"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
)

type recordRepoStub struct {
	created []*models.MedicalRecord
	exists  bool
	byID    map[string]*models.MedicalRecord
}

func (s *recordRepoStub) Create(ctx context.Context, record *models.MedicalRecord) error {
	record.ID = "rec-new"
	s.created = append(s.created, record)
	return nil
}

func (s *recordRepoStub) FindByID(ctx context.Context, id string) (*models.MedicalRecord, error) {
	if record, ok := s.byID[id]; ok {
		return record, nil
	}
	return nil, sql.ErrNoRows
}

func (s *recordRepoStub) ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error) {
	return s.exists, nil
}

func (s *recordRepoStub) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.MedicalRecord, error) {
	return nil, nil
}

func treatingDoctor() doctorStub {
	return doctorStub{exists: true, doctor: &models.Doctor{ID: "doc-1", UserID: "user-doc-1"}}
}

func TestMedicalRecordServiceCreate(t *testing.T) {
	repo := &recordRepoStub{}
	svc := NewMedicalRecordService(repo, apptLoaderStub{appointment: completedAppointment()}, treatingDoctor(), nil, nil)

	record, err := svc.Create(context.Background(), "user-doc-1", models.CreateMedicalRecordRequest{
		AppointmentID: "appt-1",
		Diagnosis:     "seasonal allergy",
		Prescription:  "antihistamine",
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-new", record.ID)
	assert.Equal(t, "pat-1", record.PatientID)
	assert.Equal(t, "doc-1", record.DoctorID)
	require.Len(t, repo.created, 1)
}

func TestMedicalRecordServiceCreateWrongDoctor(t *testing.T) {
	other := doctorStub{exists: true, doctor: &models.Doctor{ID: "doc-2", UserID: "user-doc-2"}}
	svc := NewMedicalRecordService(&recordRepoStub{}, apptLoaderStub{appointment: completedAppointment()}, other, nil, nil)

	_, err := svc.Create(context.Background(), "user-doc-2", models.CreateMedicalRecordRequest{
		AppointmentID: "appt-1",
		Diagnosis:     "seasonal allergy",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMedicalRecordServiceCreatePendingAppointment(t *testing.T) {
	appointment := completedAppointment()
	appointment.Status = models.AppointmentStatusPending
	svc := NewMedicalRecordService(&recordRepoStub{}, apptLoaderStub{appointment: appointment}, treatingDoctor(), nil, nil)

	_, err := svc.Create(context.Background(), "user-doc-1", models.CreateMedicalRecordRequest{
		AppointmentID: "appt-1",
		Diagnosis:     "seasonal allergy",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMedicalRecordServiceCreateDuplicate(t *testing.T) {
	svc := NewMedicalRecordService(&recordRepoStub{exists: true}, apptLoaderStub{appointment: completedAppointment()}, treatingDoctor(), nil, nil)

	_, err := svc.Create(context.Background(), "user-doc-1", models.CreateMedicalRecordRequest{
		AppointmentID: "appt-1",
		Diagnosis:     "seasonal allergy",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMedicalRecordServiceGetNotFound(t *testing.T) {
	svc := NewMedicalRecordService(&recordRepoStub{}, apptLoaderStub{}, treatingDoctor(), nil, nil)

	_, err := svc.Get(context.Background(), "rec-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
