package models

import (
	"time"

	"github.com/medibook/clinic-api/pkg/weekdate"
)

// Schedule declares a doctor's availability for one calendar week.
// Exactly one schedule may exist per (doctor, week start).
type Schedule struct {
	ID            string    `db:"id" json:"id"`
	DoctorID      string    `db:"doctor_id" json:"doctor_id"`
	WeekStartDate time.Time `db:"week_start_date" json:"week_start_date"`
	WeekNumber    int       `db:"week_number" json:"week_number"`
	Year          int       `db:"year" json:"year"`
	// Version detects lost updates when two writers touch the same week.
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Days []DayAvailability `db:"-" json:"availability,omitempty"`
}

// DayAvailability is one of the seven days of a weekly schedule.
// Day and Date are always recomputed from the week start, never taken
// from client input.
type DayAvailability struct {
	ID          string            `db:"id" json:"id"`
	ScheduleID  string            `db:"schedule_id" json:"-"`
	DayIndex    int               `db:"day_index" json:"day_index"`
	Day         weekdate.DayLabel `db:"day" json:"day"`
	Date        time.Time         `db:"date" json:"date"`
	IsAvailable bool              `db:"is_available" json:"is_available"`

	Slots []TimeSlot `db:"-" json:"time_slots"`
}

// TimeSlot is a bookable interval within a day. IsBooked and PatientID are
// denormalized booking state: a hint for fast availability reads, reconciled
// exclusively by the booking coordinator. The appointments table remains the
// source of truth.
type TimeSlot struct {
	ID            string  `db:"id" json:"id"`
	ScheduleDayID string  `db:"schedule_day_id" json:"-"`
	Time          string  `db:"time_slot" json:"time"`
	IsAvailable   bool    `db:"is_available" json:"is_available"`
	IsBooked      bool    `db:"is_booked" json:"is_booked"`
	PatientID     *string `db:"patient_id" json:"patient_id,omitempty"`
}

// ScheduleDayInput is one submitted day of a weekly schedule payload.
type ScheduleDayInput struct {
	Day         string   `json:"day" validate:"required"`
	Date        string   `json:"date" validate:"required"`
	IsAvailable bool     `json:"is_available"`
	TimeSlots   []string `json:"time_slots" validate:"dive,required"`
}

// ScheduleRequest creates or replaces a doctor's weekly schedule. The
// availability list must cover all seven days of the week.
type ScheduleRequest struct {
	DoctorID      string             `json:"doctor_id" validate:"required"`
	WeekStartDate string             `json:"week_start_date" validate:"required"`
	Availability  []ScheduleDayInput `json:"availability" validate:"required,len=7"`
	// Version guards updates; ignored on create.
	Version int `json:"version"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	DoctorID  string
	Year      int
	Week      int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
