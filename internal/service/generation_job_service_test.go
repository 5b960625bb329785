package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type generationJobRepoStub struct {
	mu    sync.Mutex
	items map[string]models.GenerationJob
}

func newGenerationJobRepoStub() *generationJobRepoStub {
	return &generationJobRepoStub{items: make(map[string]models.GenerationJob)}
}

func (r *generationJobRepoStub) Create(ctx context.Context, job *models.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = job.ClassID + "-job"
	job.Status = models.GenerationJobQueued
	r.items[job.ID] = *job
	return nil
}

func (r *generationJobRepoStub) FindByID(ctx context.Context, schoolID, id string) (*models.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.items[id]
	if !ok || job.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	return &job, nil
}

func (r *generationJobRepoStub) MarkRunning(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.items[id]
	job.Status = models.GenerationJobRunning
	r.items[id] = job
	return nil
}

func (r *generationJobRepoStub) MarkFinished(ctx context.Context, id string, status models.GenerationJobStatus, score *int, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.items[id]
	job.Status = status
	job.Score = score
	job.ErrorMessage = errMsg
	r.items[id] = job
	return nil
}

func (r *generationJobRepoStub) status(id string) models.GenerationJobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Status
}

type generatorStub struct {
	mu    sync.Mutex
	calls []dto.GenerateTimetableRequest
	errs  map[string]error
}

func (g *generatorStub) Generate(ctx context.Context, schoolID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if err := g.errs[req.ClassID]; err != nil {
		return nil, err
	}
	return &dto.GenerateTimetableResponse{ClassID: req.ClassID, Semester: req.Semester, Score: 42, Committed: true}, nil
}

func startGenerationQueue(t *testing.T, svc *GenerationJobService) {
	t.Helper()
	queue := jobs.NewQueue("timetable-test", svc.Handle, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
		OnComplete: svc.OnComplete,
	})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	svc.AttachQueue(queue)
}

func TestGenerationJobServiceRunsBatch(t *testing.T) {
	repo := newGenerationJobRepoStub()
	gen := &generatorStub{errs: map[string]error{
		"class-2": appErrors.Clone(appErrors.ErrInfeasibleInput, "too many credits"),
		"class-3": errors.New("database down"),
	}}
	svc := NewGenerationJobService(repo, gen, nil, nil)
	startGenerationQueue(t, svc)

	resp, err := svc.EnqueueBatch(context.Background(), "school-1", dto.BatchGenerateRequest{
		Semester:   1,
		ClassIDs:   []string{"class-1", "class-2", "class-3"},
		Priorities: map[string]int{"math": 2},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.JobIDs, 3)

	require.Eventually(t, func() bool {
		for _, id := range resp.JobIDs {
			status := repo.status(id)
			if status != models.GenerationJobSucceeded && status != models.GenerationJobFailed {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	done, err := svc.Get(context.Background(), "school-1", "class-1-job")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobSucceeded, done.Status)
	require.NotNil(t, done.Score)
	assert.Equal(t, 42, *done.Score)
	assert.Equal(t, map[string]int{"math": 2}, done.Params.Priorities)

	rejected, err := svc.Get(context.Background(), "school-1", "class-2-job")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobFailed, rejected.Status)
	require.NotNil(t, rejected.ErrorMessage)
	assert.Contains(t, *rejected.ErrorMessage, "too many credits")

	failed, err := svc.Get(context.Background(), "school-1", "class-3-job")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobFailed, failed.Status)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	retried := 0
	for _, call := range gen.calls {
		if call.ClassID == "class-3" {
			retried++
		}
		assert.Equal(t, 2, call.Priorities["math"])
		assert.False(t, call.Preview)
	}
	assert.Equal(t, 2, retried)
}

func TestGenerationJobServiceRequiresQueue(t *testing.T) {
	svc := NewGenerationJobService(newGenerationJobRepoStub(), &generatorStub{}, nil, nil)

	_, err := svc.EnqueueBatch(context.Background(), "school-1", dto.BatchGenerateRequest{Semester: 1, ClassIDs: []string{"class-1"}})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.EnqueueBatch(context.Background(), "school-1", dto.BatchGenerateRequest{Semester: 1})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerationJobServiceGetScopesBySchool(t *testing.T) {
	repo := newGenerationJobRepoStub()
	require.NoError(t, repo.Create(context.Background(), &models.GenerationJob{SchoolID: "school-1", ClassID: "class-1"}))
	svc := NewGenerationJobService(repo, &generatorStub{}, nil, nil)

	_, err := svc.Get(context.Background(), "school-2", "class-1-job")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
