package models

import "time"

// MedicalRecord documents the outcome of a completed appointment,
// one-to-one per appointment.
type MedicalRecord struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID string    `db:"appointment_id" json:"appointment_id"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	DoctorID      string    `db:"doctor_id" json:"doctor_id"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Treatment     string    `db:"treatment" json:"treatment"`
	Prescription  string    `db:"prescription" json:"prescription"`
	Notes         string    `db:"notes" json:"notes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CreateMedicalRecordRequest documents the outcome of a completed
// appointment.
type CreateMedicalRecordRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	Diagnosis     string `json:"diagnosis" validate:"required,max=4000"`
	Treatment     string `json:"treatment" validate:"omitempty,max=4000"`
	Prescription  string `json:"prescription" validate:"omitempty,max=4000"`
	Notes         string `json:"notes" validate:"omitempty,max=4000"`
}
