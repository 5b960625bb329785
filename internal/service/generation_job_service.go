package service

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

// JobTypeTimetableGeneration tags queued timetable generations.
const JobTypeTimetableGeneration = "timetable_generation"

type generationJobRepository interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	FindByID(ctx context.Context, schoolID, id string) (*models.GenerationJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string, status models.GenerationJobStatus, score *int, errMsg *string) error
}

type timetableGenerator interface {
	Generate(ctx context.Context, schoolID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type generationPayload struct {
	SchoolID   string         `mapstructure:"school_id"`
	ClassID    string         `mapstructure:"class_id"`
	Semester   int            `mapstructure:"semester"`
	Priorities map[string]int `mapstructure:"priorities"`
}

// GenerationJobService queues timetable generations for many classes and tracks their status.
type GenerationJobService struct {
	repo      generationJobRepository
	generator timetableGenerator
	queue     jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGenerationJobService constructs the service. AttachQueue must be called before EnqueueBatch.
func NewGenerationJobService(repo generationJobRepository, generator timetableGenerator, validate *validator.Validate, logger *zap.Logger) *GenerationJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationJobService{repo: repo, generator: generator, validator: validate, logger: logger}
}

// AttachQueue sets the queue jobs are dispatched to.
func (s *GenerationJobService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// EnqueueBatch records and queues one generation job per class.
func (s *GenerationJobService) EnqueueBatch(ctx context.Context, schoolID string, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "batch generation is disabled")
	}

	resp := &dto.BatchGenerateResponse{BatchID: uuid.NewString(), JobIDs: make([]string, 0, len(req.ClassIDs))}
	for _, classID := range req.ClassIDs {
		record := &models.GenerationJob{
			BatchID:  resp.BatchID,
			SchoolID: schoolID,
			ClassID:  classID,
			Semester: req.Semester,
			Params:   models.GenerationJobParams{Priorities: req.Priorities},
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record generation job")
		}
		job := jobs.Job{
			ID:   record.ID,
			Type: JobTypeTimetableGeneration,
			Payload: map[string]interface{}{
				"school_id":  schoolID,
				"class_id":   classID,
				"semester":   req.Semester,
				"priorities": req.Priorities,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.finish(ctx, record.ID, models.GenerationJobFailed, nil, err)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue generation job")
		}
		resp.JobIDs = append(resp.JobIDs, record.ID)
	}

	s.logger.Sugar().Infow("timetable batch queued",
		"school_id", schoolID,
		"batch_id", resp.BatchID,
		"jobs", len(resp.JobIDs),
	)
	return resp, nil
}

// Get returns a job of the school.
func (s *GenerationJobService) Get(ctx context.Context, schoolID, id string) (*models.GenerationJob, error) {
	job, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		return nil, notFoundOr(err, "generation job not found", "failed to load generation job")
	}
	return job, nil
}

// Handle runs one queued generation. Client errors finish the job at once; other errors are
// returned so the queue retries them.
func (s *GenerationJobService) Handle(ctx context.Context, job jobs.Job) error {
	var payload generationPayload
	if err := mapstructure.Decode(job.Payload, &payload); err != nil {
		s.finish(ctx, job.ID, models.GenerationJobFailed, nil, err)
		return nil
	}
	if err := s.repo.MarkRunning(ctx, job.ID); err != nil {
		return err
	}

	resp, err := s.generator.Generate(ctx, payload.SchoolID, dto.GenerateTimetableRequest{
		ClassID:    payload.ClassID,
		Semester:   payload.Semester,
		Priorities: payload.Priorities,
	})
	if err != nil {
		if appErrors.FromError(err).Status < http.StatusInternalServerError {
			s.finish(ctx, job.ID, models.GenerationJobFailed, nil, err)
			return nil
		}
		return err
	}
	score := resp.Score
	s.finish(ctx, job.ID, models.GenerationJobSucceeded, &score, nil)
	return nil
}

// OnComplete marks jobs that exhausted their retries as failed.
func (s *GenerationJobService) OnComplete(job jobs.Job, err error) {
	if err == nil {
		return
	}
	s.finish(context.Background(), job.ID, models.GenerationJobFailed, nil, err)
}

func (s *GenerationJobService) finish(ctx context.Context, id string, status models.GenerationJobStatus, score *int, cause error) {
	var message *string
	if cause != nil {
		text := cause.Error()
		message = &text
	}
	if err := s.repo.MarkFinished(ctx, id, status, score, message); err != nil {
		s.logger.Error("failed to record generation job result", zap.String("job_id", id), zap.Error(err))
		return
	}
	s.logger.Info("generation job finished", zap.String("job_id", id), zap.String("status", string(status)))
}
