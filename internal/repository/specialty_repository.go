package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medibook/clinic-api/internal/models"
)

// SpecialtyRepository provides persistence for medical specialties.
type SpecialtyRepository struct {
	db *sqlx.DB
}

// NewSpecialtyRepository creates a new specialty repository.
func NewSpecialtyRepository(db *sqlx.DB) *SpecialtyRepository {
	return &SpecialtyRepository{db: db}
}

// List returns specialties with optional search and pagination.
func (r *SpecialtyRepository) List(ctx context.Context, filter models.SpecialtyFilter) ([]models.Specialty, int, error) {
	baseQuery := `FROM specialties WHERE 1=1`
	var args []interface{}

	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	if sortBy != "name" && sortBy != "created_at" {
		sortBy = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT id, name, description, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, order, size, offset)
	var specialties []models.Specialty
	if err := r.db.SelectContext(ctx, &specialties, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list specialties: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count specialties: %w", err)
	}

	return specialties, total, nil
}

// FindByID loads a specialty by id.
func (r *SpecialtyRepository) FindByID(ctx context.Context, id string) (*models.Specialty, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM specialties WHERE id = $1`
	var specialty models.Specialty
	if err := r.db.GetContext(ctx, &specialty, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find specialty: %w", err)
	}
	return &specialty, nil
}

// ExistsByName reports whether a specialty with the given name exists.
func (r *SpecialtyRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM specialties WHERE LOWER(name) = LOWER($1) AND id <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check specialty name: %w", err)
	}
	return exists, nil
}

// Create stores a new specialty.
func (r *SpecialtyRepository) Create(ctx context.Context, specialty *models.Specialty) error {
	if specialty.ID == "" {
		specialty.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if specialty.CreatedAt.IsZero() {
		specialty.CreatedAt = now
	}
	specialty.UpdatedAt = now

	const query = `INSERT INTO specialties (id, name, description, created_at, updated_at) VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, specialty); err != nil {
		return fmt.Errorf("create specialty: %w", err)
	}
	return nil
}

// Update modifies a specialty record.
func (r *SpecialtyRepository) Update(ctx context.Context, specialty *models.Specialty) error {
	specialty.UpdatedAt = time.Now().UTC()
	const query = `UPDATE specialties SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, specialty); err != nil {
		return fmt.Errorf("update specialty: %w", err)
	}
	return nil
}

// Delete removes a specialty by id.
func (r *SpecialtyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM specialties WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete specialty: %w", err)
	}
	return nil
}

// CountDoctors returns the number of doctors referencing a specialty.
func (r *SpecialtyRepository) CountDoctors(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM doctors WHERE specialty_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count specialty doctors: %w", err)
	}
	return count, nil
}
