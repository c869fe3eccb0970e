package models

import "time"

// AppointmentStatus enumerates the appointment state machine. Pending is the
// only non-terminal state.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// Appointment is a concrete booking of one patient into one doctor's slot.
// At most one non-cancelled appointment may exist per
// (doctor, date, time slot); the partial unique index on the appointments
// table enforces this regardless of application-level checks.
type Appointment struct {
	ID              string            `db:"id" json:"id"`
	PatientID       string            `db:"patient_id" json:"patient_id"`
	DoctorID        string            `db:"doctor_id" json:"doctor_id"`
	AppointmentDate time.Time         `db:"appointment_date" json:"appointment_date"`
	TimeSlot        string            `db:"time_slot" json:"time_slot"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`

	// Joined display fields, populated on reads.
	PatientName string `db:"patient_name" json:"patient_name,omitempty"`
	DoctorName  string `db:"doctor_name" json:"doctor_name,omitempty"`
}

// BookAppointmentRequest is the patient-facing booking payload.
type BookAppointmentRequest struct {
	DoctorID string `json:"doctor_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
	TimeSlot string `json:"time_slot" validate:"required"`
	Notes    string `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateAppointmentStatusRequest transitions an appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=completed cancelled"`
}

// DaySlots is the availability view for one doctor on one date: the open
// slot times a patient can still book.
type DaySlots struct {
	DoctorID string   `json:"doctor_id"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

// AppointmentFilter captures filtering criteria for listing appointments.
type AppointmentFilter struct {
	PatientID     string
	DoctorID      string
	Status        *AppointmentStatus
	ExcludeStatus *AppointmentStatus
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
