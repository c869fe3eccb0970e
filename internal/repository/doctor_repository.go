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

// DoctorRepository provides persistence for doctor profiles.
type DoctorRepository struct {
	db *sqlx.DB
}

// NewDoctorRepository creates a new doctor repository.
func NewDoctorRepository(db *sqlx.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

const doctorColumns = `d.id, d.user_id, d.specialty_id, d.bio, d.consultation_fee, d.years_experience, d.active, d.created_at, d.updated_at, u.full_name, u.email, s.name AS specialty_name`

const doctorJoins = `FROM doctors d
JOIN users u ON u.id = d.user_id
JOIN specialties s ON s.id = d.specialty_id`

// List returns doctors with optional filtering and pagination.
func (r *DoctorRepository) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	baseQuery := doctorJoins + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SpecialtyID != "" {
		conditions = append(conditions, fmt.Sprintf("d.specialty_id = $%d", len(args)+1))
		args = append(args, filter.SpecialtyID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("d.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(s.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"created_at": "d.created_at",
		"full_name":  "u.full_name",
		"fee":        "d.consultation_fee",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "u.full_name"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", doctorColumns, baseQuery, sortColumn, order, size, offset)
	var doctors []models.Doctor
	if err := r.db.SelectContext(ctx, &doctors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	return doctors, total, nil
}

// FindByID loads a doctor profile by id.
func (r *DoctorRepository) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE d.id = $1", doctorColumns, doctorJoins)
	var doctor models.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find doctor: %w", err)
	}
	return &doctor, nil
}

// FindByUserID loads a doctor profile by the owning user account.
func (r *DoctorRepository) FindByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE d.user_id = $1", doctorColumns, doctorJoins)
	var doctor models.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find doctor by user: %w", err)
	}
	return &doctor, nil
}

// Exists reports whether an active doctor with the given id exists.
func (r *DoctorRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1 AND active = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("check doctor exists: %w", err)
	}
	return exists, nil
}

// Create stores a new doctor profile.
func (r *DoctorRepository) Create(ctx context.Context, doctor *models.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doctor.CreatedAt.IsZero() {
		doctor.CreatedAt = now
	}
	doctor.UpdatedAt = now

	const query = `INSERT INTO doctors (id, user_id, specialty_id, bio, consultation_fee, years_experience, active, created_at, updated_at) VALUES (:id, :user_id, :specialty_id, :bio, :consultation_fee, :years_experience, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("create doctor: %w", err)
	}
	return nil
}

// Update modifies a doctor profile.
func (r *DoctorRepository) Update(ctx context.Context, doctor *models.Doctor) error {
	doctor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE doctors SET specialty_id = :specialty_id, bio = :bio, consultation_fee = :consultation_fee, years_experience = :years_experience, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

// Deactivate marks a doctor profile inactive.
func (r *DoctorRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE doctors SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate doctor: %w", err)
	}
	return nil
}
