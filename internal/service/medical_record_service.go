package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medibook/clinic-api/internal/models"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
)

type medicalRecordRepository interface {
	Create(ctx context.Context, record *models.MedicalRecord) error
	FindByID(ctx context.Context, id string) (*models.MedicalRecord, error)
	ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]models.MedicalRecord, error)
}

// MedicalRecordService lets the treating doctor document completed
// appointments and patients read their own history.
type MedicalRecordService struct {
	records      medicalRecordRepository
	appointments reviewAppointmentLoader
	doctors      doctorExistenceChecker
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewMedicalRecordService constructs a MedicalRecordService.
func NewMedicalRecordService(records medicalRecordRepository, appointments reviewAppointmentLoader, doctors doctorExistenceChecker, validate *validator.Validate, logger *zap.Logger) *MedicalRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MedicalRecordService{records: records, appointments: appointments, doctors: doctors, validator: validate, logger: logger}
}

// Create documents a completed appointment. Only the treating doctor may
// write the record, and each appointment gets at most one.
func (s *MedicalRecordService) Create(ctx context.Context, actingUserID string, req models.CreateMedicalRecordRequest) (*models.MedicalRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid medical record payload")
	}

	appointment, err := s.appointments.FindByID(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
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
	if appointment.Status != models.AppointmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only completed appointments can be documented")
	}

	exists, err := s.records.ExistsByAppointment(ctx, appointment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check record")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment already has a medical record")
	}

	record := &models.MedicalRecord{
		AppointmentID: appointment.ID,
		PatientID:     appointment.PatientID,
		DoctorID:      appointment.DoctorID,
		Diagnosis:     req.Diagnosis,
		Treatment:     req.Treatment,
		Prescription:  req.Prescription,
		Notes:         req.Notes,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create medical record")
	}
	return record, nil
}

// Get loads one record.
func (s *MedicalRecordService) Get(ctx context.Context, id string) (*models.MedicalRecord, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "medical record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load medical record")
	}
	return record, nil
}

// ListByPatient returns a patient's records, newest first.
func (s *MedicalRecordService) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.MedicalRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, err := s.records.ListByPatient(ctx, patientID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list medical records")
	}
	return records, nil
}
