package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// GenerationJobRepository persists batch generation jobs.
type GenerationJobRepository struct {
	db *sqlx.DB
}

// NewGenerationJobRepository constructs the repository.
func NewGenerationJobRepository(db *sqlx.DB) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

// Create stores a queued job.
func (r *GenerationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.GenerationJobQueued
	}
	const query = `INSERT INTO generation_jobs (id, batch_id, school_id, class_id, semester, params, status, created_at)
VALUES (:id, :batch_id, :school_id, :class_id, :semester, :params, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create generation job: %w", err)
	}
	return nil
}

// FindByID returns a job of the school.
func (r *GenerationJobRepository) FindByID(ctx context.Context, schoolID, id string) (*models.GenerationJob, error) {
	const query = `SELECT id, batch_id, school_id, class_id, semester, params, status, score, error_message, created_at, finished_at
FROM generation_jobs WHERE school_id = $1 AND id = $2`
	var job models.GenerationJob
	if err := r.db.GetContext(ctx, &job, query, schoolID, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning flags a job as picked up by a worker.
func (r *GenerationJobRepository) MarkRunning(ctx context.Context, id string) error {
	const query = `UPDATE generation_jobs SET status = $2, error_message = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.GenerationJobRunning); err != nil {
		return fmt.Errorf("mark generation job running: %w", err)
	}
	return nil
}

// MarkFinished records the final state of a job.
func (r *GenerationJobRepository) MarkFinished(ctx context.Context, id string, status models.GenerationJobStatus, score *int, errMsg *string) error {
	const query = `UPDATE generation_jobs SET status = $2, score = $3, error_message = $4, finished_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, score, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish generation job: %w", err)
	}
	return nil
}
