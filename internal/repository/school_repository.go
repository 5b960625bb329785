package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

const schoolColumns = `id, name, username, password_hash, start_time, end_time, lecture_duration, break_start_time, break_duration, created_at, updated_at`

// SchoolRepository persists school accounts and their daily time configuration.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// FindByUsername returns a school by login name.
func (r *SchoolRepository) FindByUsername(ctx context.Context, username string) (*models.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE LOWER(username) = LOWER($1) LIMIT 1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find school by username: %w", err)
	}
	return &school, nil
}

// FindByID returns a school by identifier.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE id = $1 LIMIT 1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find school by id: %w", err)
	}
	return &school, nil
}

// ExistsByUsername checks whether a username is already registered.
func (r *SchoolRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT 1 FROM schools WHERE LOWER(username) = LOWER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check school username: %w", err)
	}
	return true, nil
}

// Create inserts a new school record.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now
	}
	school.UpdatedAt = now

	const query = `INSERT INTO schools (id, name, username, password_hash, start_time, end_time, lecture_duration, break_start_time, break_duration, created_at, updated_at)
		VALUES (:id, :name, :username, :password_hash, :start_time, :end_time, :lecture_duration, :break_start_time, :break_duration, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}
