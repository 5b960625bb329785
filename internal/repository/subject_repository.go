package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns the school's subjects with teacher and class names.
func (r *SubjectRepository) List(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.SubjectDetail, error) {
	conditions := []string{"s.school_id = $1"}
	args := []interface{}{schoolID}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("s.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	query := `SELECT s.id, s.school_id, s.class_id, s.teacher_id, s.name, s.semester, s.credits, s.created_at, s.updated_at, t.name AS teacher_name, c.name AS class_name
FROM subjects s JOIN teachers t ON t.id = s.teacher_id JOIN classes c ON c.id = s.class_id
WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY c.name ASC, s.semester ASC, s.name ASC`
	var subjects []models.SubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListForClass returns the subjects taught to a class in a semester.
func (r *SubjectRepository) ListForClass(ctx context.Context, classID string, semester int) ([]models.Subject, error) {
	const query = `SELECT id, school_id, class_id, teacher_id, name, semester, credits, created_at, updated_at
FROM subjects WHERE class_id = $1 AND semester = $2 ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, classID, semester); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}

// ExistsByName checks for a subject with the same name in the class and semester.
func (r *SubjectRepository) ExistsByName(ctx context.Context, classID string, semester int, name string) (bool, error) {
	const query = `SELECT 1 FROM subjects WHERE class_id = $1 AND semester = $2 AND LOWER(name) = LOWER($3) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, semester, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check subject name: %w", err)
	}
	return true, nil
}

// Create inserts a new subject record.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, school_id, class_id, teacher_id, name, semester, credits, created_at, updated_at)
		VALUES (:id, :school_id, :class_id, :teacher_id, :name, :semester, :credits, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}
