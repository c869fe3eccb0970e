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

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByAppointment(ctx context.Context, appointmentID string) (*models.Review, error)
	ExistsByAppointment(ctx context.Context, appointmentID string) (bool, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Review, error)
}

type reviewAppointmentLoader interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
}

// ReviewService lets patients review completed appointments, one review per
// appointment.
type ReviewService struct {
	reviews      reviewRepository
	appointments reviewAppointmentLoader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReviewService constructs a ReviewService.
func NewReviewService(reviews reviewRepository, appointments reviewAppointmentLoader, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{reviews: reviews, appointments: appointments, validator: validate, logger: logger}
}

// Create records a review by the appointment's patient. Only completed
// appointments are reviewable.
func (s *ReviewService) Create(ctx context.Context, patientID string, req models.CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	appointment, err := s.appointments.FindByID(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	if appointment.PatientID != patientID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another patient")
	}
	if appointment.Status != models.AppointmentStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only completed appointments can be reviewed")
	}

	exists, err := s.reviews.ExistsByAppointment(ctx, appointment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check review")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "appointment is already reviewed")
	}

	review := &models.Review{
		AppointmentID: appointment.ID,
		PatientID:     patientID,
		DoctorID:      appointment.DoctorID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}
	return review, nil
}

// ListByDoctor returns recent reviews for a doctor.
func (s *ReviewService) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	reviews, err := s.reviews.ListByDoctor(ctx, doctorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}
