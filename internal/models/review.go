package models

import "time"

// Review is patient feedback tied to a completed appointment, one per
// appointment. Its existence blocks deletion of the appointment.
type Review struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID string    `db:"appointment_id" json:"appointment_id"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	DoctorID      string    `db:"doctor_id" json:"doctor_id"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       string    `db:"comment" json:"comment"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CreateReviewRequest submits patient feedback for a completed appointment.
type CreateReviewRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Comment       string `json:"comment" validate:"omitempty,max=2000"`
}
