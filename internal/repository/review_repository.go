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

// ReviewRepository persists appointment reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create stores a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reviews (id, appointment_id, patient_id, doctor_id, rating, comment, created_at) VALUES (:id, :appointment_id, :patient_id, :doctor_id, :rating, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByAppointment loads the review for an appointment, if any.
func (r *ReviewRepository) FindByAppointment(ctx context.Context, appointmentID string) (*models.Review, error) {
	const query = `SELECT id, appointment_id, patient_id, doctor_id, rating, comment, created_at FROM reviews WHERE appointment_id = $1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, appointmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by appointment: %w", err)
	}
	return &review, nil
}

// ExistsByAppointment reports whether a review references the appointment.
func (r *ReviewRepository) ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reviews WHERE appointment_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, appointmentID); err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return exists, nil
}

// ListByDoctor returns reviews for a doctor, newest first.
func (r *ReviewRepository) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, appointment_id, patient_id, doctor_id, rating, comment, created_at FROM reviews WHERE doctor_id = $1 ORDER BY created_at DESC LIMIT $2`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, doctorID, limit); err != nil {
		return nil, fmt.Errorf("list doctor reviews: %w", err)
	}
	return reviews, nil
}
