package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionRegister          = "REGISTER"
	AuditActionPasswordChange    = "PASSWORD_CHANGE"
	AuditActionAppointmentBook   = "APPOINTMENT_BOOK"
	AuditActionAppointmentCancel = "APPOINTMENT_CANCEL"
	AuditActionAppointmentStatus = "APPOINTMENT_STATUS"
	AuditActionAppointmentDelete = "APPOINTMENT_DELETE"
	AuditActionScheduleCreate    = "SCHEDULE_CREATE"
	AuditActionScheduleUpdate    = "SCHEDULE_UPDATE"
	AuditActionScheduleDelete    = "SCHEDULE_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
