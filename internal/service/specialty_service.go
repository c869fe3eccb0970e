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

type specialtyRepository interface {
	List(ctx context.Context, filter models.SpecialtyFilter) ([]models.Specialty, int, error)
	FindByID(ctx context.Context, id string) (*models.Specialty, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, specialty *models.Specialty) error
	Update(ctx context.Context, specialty *models.Specialty) error
	Delete(ctx context.Context, id string) error
	CountDoctors(ctx context.Context, id string) (int, error)
}

// SpecialtyService manages the specialty taxonomy.
type SpecialtyService struct {
	repo      specialtyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSpecialtyService constructs a SpecialtyService.
func NewSpecialtyService(repo specialtyRepository, validate *validator.Validate, logger *zap.Logger) *SpecialtyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SpecialtyService{repo: repo, validator: validate, logger: logger}
}

// List returns specialties matching the filter.
func (s *SpecialtyService) List(ctx context.Context, filter models.SpecialtyFilter) ([]models.Specialty, *models.Pagination, error) {
	specialties, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list specialties")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return specialties, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one specialty.
func (s *SpecialtyService) Get(ctx context.Context, id string) (*models.Specialty, error) {
	specialty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "specialty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load specialty")
	}
	return specialty, nil
}

// Create adds a specialty with a unique name.
func (s *SpecialtyService) Create(ctx context.Context, req models.SpecialtyRequest) (*models.Specialty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid specialty payload")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check specialty name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "specialty name already exists")
	}

	specialty := &models.Specialty{Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, specialty); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create specialty")
	}
	return specialty, nil
}

// Update renames or redescribes a specialty.
func (s *SpecialtyService) Update(ctx context.Context, id string, req models.SpecialtyRequest) (*models.Specialty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid specialty payload")
	}

	specialty, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check specialty name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "specialty name already exists")
	}

	specialty.Name = req.Name
	specialty.Description = req.Description
	if err := s.repo.Update(ctx, specialty); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update specialty")
	}
	return specialty, nil
}

// Delete removes a specialty no doctor references.
func (s *SpecialtyService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountDoctors(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count doctors")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "specialty is referenced by doctors")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete specialty")
	}
	return nil
}
