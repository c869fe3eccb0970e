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

type doctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Doctor, error)
	Create(ctx context.Context, doctor *models.Doctor) error
	Update(ctx context.Context, doctor *models.Doctor) error
	Deactivate(ctx context.Context, id string) error
}

type doctorUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type doctorSpecialtyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Specialty, error)
}

// DoctorService manages doctor profiles.
type DoctorService struct {
	doctors     doctorRepository
	users       doctorUserRepository
	specialties doctorSpecialtyRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDoctorService constructs a DoctorService.
func NewDoctorService(doctors doctorRepository, users doctorUserRepository, specialties doctorSpecialtyRepository, validate *validator.Validate, logger *zap.Logger) *DoctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DoctorService{doctors: doctors, users: users, specialties: specialties, validator: validate, logger: logger}
}

// List returns doctor profiles matching the filter.
func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, *models.Pagination, error) {
	doctors, total, err := s.doctors.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return doctors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one doctor profile.
func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	doctor, err := s.doctors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	return doctor, nil
}

// GetByUser loads the doctor profile attached to a user account.
func (s *DoctorService) GetByUser(ctx context.Context, userID string) (*models.Doctor, error) {
	doctor, err := s.doctors.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no doctor profile for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	return doctor, nil
}

// Create registers a doctor profile for an existing user and promotes the
// account to the doctor role.
func (s *DoctorService) Create(ctx context.Context, req models.CreateDoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if _, err := s.doctors.FindByUserID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has a doctor profile")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check doctor profile")
	}

	if _, err := s.specialties.FindByID(ctx, req.SpecialtyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "specialty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load specialty")
	}

	doctor := &models.Doctor{
		UserID:          req.UserID,
		SpecialtyID:     req.SpecialtyID,
		Bio:             req.Bio,
		ConsultationFee: req.ConsultationFee,
		YearsExperience: req.YearsExperience,
		Active:          true,
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create doctor")
	}

	if user.Role != models.RoleDoctor {
		user.Role = models.RoleDoctor
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Warn("failed to promote user to doctor role", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return doctor, nil
}

// Update changes mutable doctor profile fields.
func (s *DoctorService) Update(ctx context.Context, id string, req models.UpdateDoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	doctor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.specialties.FindByID(ctx, req.SpecialtyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "specialty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load specialty")
	}

	doctor.SpecialtyID = req.SpecialtyID
	doctor.Bio = req.Bio
	doctor.ConsultationFee = req.ConsultationFee
	doctor.YearsExperience = req.YearsExperience

	if err := s.doctors.Update(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update doctor")
	}
	return doctor, nil
}

// Deactivate hides a doctor from booking without deleting history.
func (s *DoctorService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.doctors.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate doctor")
	}
	return nil
}
