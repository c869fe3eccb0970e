package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medibook/clinic-api/internal/models"
)

// MedicalRecordRepository persists medical records.
type MedicalRecordRepository struct {
	db *sqlx.DB
}

// NewMedicalRecordRepository creates a new medical record repository.
func NewMedicalRecordRepository(db *sqlx.DB) *MedicalRecordRepository {
	return &MedicalRecordRepository{db: db}
}

const medicalRecordColumns = `id, appointment_id, patient_id, doctor_id, diagnosis, treatment, prescription, notes, created_at, updated_at`

// Create stores a new medical record.
func (r *MedicalRecordRepository) Create(ctx context.Context, record *models.MedicalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO medical_records (id, appointment_id, patient_id, doctor_id, diagnosis, treatment, prescription, notes, created_at, updated_at) VALUES (:id, :appointment_id, :patient_id, :doctor_id, :diagnosis, :treatment, :prescription, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create medical record: %w", err)
	}
	return nil
}

// FindByID loads a medical record by id.
func (r *MedicalRecordRepository) FindByID(ctx context.Context, id string) (*models.MedicalRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM medical_records WHERE id = $1", medicalRecordColumns)
	var record models.MedicalRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find medical record: %w", err)
	}
	return &record, nil
}

// ExistsByAppointment reports whether a record exists for the appointment.
func (r *MedicalRecordRepository) ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM medical_records WHERE appointment_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, appointmentID); err != nil {
		return false, fmt.Errorf("check medical record exists: %w", err)
	}
	return exists, nil
}

// ListByPatient returns records for a patient, newest first.
func (r *MedicalRecordRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.MedicalRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM medical_records WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2", medicalRecordColumns)
	var records []models.MedicalRecord
	if err := r.db.SelectContext(ctx, &records, query, patientID, limit); err != nil {
		return nil, fmt.Errorf("list patient medical records: %w", err)
	}
	return records, nil
}
