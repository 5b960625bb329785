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

// ClassRepository handles persistence of classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new repository instance.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListBySchool returns the school's classes ordered by name.
func (r *ClassRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Class, error) {
	const query = `SELECT id, school_id, name, created_at, updated_at FROM classes WHERE school_id = $1 ORDER BY name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, schoolID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class of the school.
func (r *ClassRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Class, error) {
	const query = `SELECT id, school_id, name, created_at, updated_at FROM classes WHERE school_id = $1 AND id = $2`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, schoolID, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ExistsByName checks whether the school already has a class with the name.
func (r *ClassRepository) ExistsByName(ctx context.Context, schoolID, name string) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE school_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check class name: %w", err)
	}
	return true, nil
}

// Create inserts a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, school_id, name, created_at, updated_at)
		VALUES (:id, :school_id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}
