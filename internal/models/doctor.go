package models

import "time"

// Doctor represents a practicing doctor's profile linked to a user account.
type Doctor struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	SpecialtyID     string    `db:"specialty_id" json:"specialty_id"`
	Bio             string    `db:"bio" json:"bio"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	YearsExperience int       `db:"years_experience" json:"years_experience"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// Joined display fields, populated on reads.
	FullName      string `db:"full_name" json:"full_name,omitempty"`
	Email         string `db:"email" json:"email,omitempty"`
	SpecialtyName string `db:"specialty_name" json:"specialty_name,omitempty"`
}

// CreateDoctorRequest registers a doctor profile for an existing user.
type CreateDoctorRequest struct {
	UserID          string  `json:"user_id" validate:"required"`
	SpecialtyID     string  `json:"specialty_id" validate:"required"`
	Bio             string  `json:"bio" validate:"omitempty,max=2000"`
	ConsultationFee float64 `json:"consultation_fee" validate:"gte=0"`
	YearsExperience int     `json:"years_experience" validate:"gte=0"`
}

// UpdateDoctorRequest updates mutable doctor profile fields.
type UpdateDoctorRequest struct {
	SpecialtyID     string  `json:"specialty_id" validate:"required"`
	Bio             string  `json:"bio" validate:"omitempty,max=2000"`
	ConsultationFee float64 `json:"consultation_fee" validate:"gte=0"`
	YearsExperience int     `json:"years_experience" validate:"gte=0"`
}

// DoctorFilter captures filtering criteria for listing doctors.
type DoctorFilter struct {
	SpecialtyID string
	Active      *bool
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
