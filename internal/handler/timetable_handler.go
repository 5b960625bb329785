package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, schoolID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Commit(ctx context.Context, schoolID, proposalID string) (*dto.GenerateTimetableResponse, error)
}

type timetableManager interface {
	Get(ctx context.Context, schoolID, classID string, semester int) (*models.TimetableView, bool, error)
	Replace(ctx context.Context, schoolID string, req dto.ReplaceTimetableRequest) (*models.TimetableView, error)
	Delete(ctx context.Context, schoolID, classID string, semester int) error
	Timeslots(ctx context.Context, schoolID string) (*models.TimeslotOverview, error)
}

type timetableExporter interface {
	ExportTimetable(ctx context.Context, schoolID string, query dto.TimetableQuery) (*service.ExportResult, error)
}

type generationJobs interface {
	EnqueueBatch(ctx context.Context, schoolID string, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	Get(ctx context.Context, schoolID, id string) (*models.GenerationJob, error)
}

// TimetableHandler exposes timetable generation, views, edits and exports.
type TimetableHandler struct {
	generator timetableGenerator
	timetable timetableManager
	exporter  timetableExporter
	jobs      generationJobs
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator timetableGenerator, timetable timetableManager, exporter timetableExporter, jobs generationJobs) *TimetableHandler {
	return &TimetableHandler{generator: generator, timetable: timetable, exporter: exporter, jobs: jobs}
}

// Generate godoc
// @Summary Generate a class timetable
// @Description Runs the allocator for the class and semester. With preview the result is held as a proposal until committed.
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateTimetableRequest true "Generate payload"
// @Success 200 {object} response.Envelope "preview proposal"
// @Success 201 {object} response.Envelope "committed timetable"
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), schoolID, req)
	if err != nil {
		respondTimetableError(c, err)
		return
	}
	if result.Committed {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Commit godoc
// @Summary Commit a previewed timetable proposal
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Proposal ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/proposals/{id}/commit [post]
func (h *TimetableHandler) Commit(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.generator.Commit(c.Request.Context(), schoolID, c.Param("id"))
	if err != nil {
		respondTimetableError(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get a class timetable
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param classId query string true "Class ID"
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query, ok := bindTimetableQuery(c)
	if !ok {
		return
	}
	view, hit, err := h.timetable.Get(c.Request.Context(), schoolID, query.ClassID, query.Semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Replace godoc
// @Summary Replace a class timetable with manual entries
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ReplaceTimetableRequest true "Timetable entries"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [put]
func (h *TimetableHandler) Replace(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReplaceTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	view, err := h.timetable.Replace(c.Request.Context(), schoolID, req)
	if err != nil {
		respondTimetableError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete a class timetable
// @Tags Timetables
// @Security BearerAuth
// @Param classId query string true "Class ID"
// @Param semester query int true "Semester"
// @Success 204
// @Router /timetables [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query, ok := bindTimetableQuery(c)
	if !ok {
		return
	}
	if err := h.timetable.Delete(c.Request.Context(), schoolID, query.ClassID, query.Semester); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download a class timetable
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param classId query string true "Class ID"
// @Param semester query int true "Semester"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /timetables/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query, ok := bindTimetableQuery(c)
	if !ok {
		return
	}
	result, err := h.exporter.ExportTimetable(c.Request.Context(), schoolID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Timeslots godoc
// @Summary Describe the school day
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timeslots [get]
func (h *TimetableHandler) Timeslots(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	overview, err := h.timetable.Timeslots(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Batch godoc
// @Summary Queue timetable generation for several classes
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 202 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/batch [post]
func (h *TimetableHandler) Batch(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.jobs.EnqueueBatch(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Job godoc
// @Summary Get a batch generation job
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), schoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

func bindTimetableQuery(c *gin.Context) (dto.TimetableQuery, bool) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return query, false
	}
	if query.ClassID == "" || query.Semester <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and semester are required"))
		return query, false
	}
	return query, true
}

// respondTimetableError includes conflict details when persistence hit a teacher clash.
func respondTimetableError(c *gin.Context, err error) {
	var conflict *models.TimetableConflictError
	if errors.As(err, &conflict) {
		response.ErrorWithData(c, err, conflict)
		return
	}
	response.Error(c, err)
}
