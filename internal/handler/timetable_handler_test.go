package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type timetableGeneratorMock struct {
	captured dto.GenerateTimetableRequest
	schoolID string
	err      error
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, schoolID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.captured = req
	m.schoolID = schoolID
	if m.err != nil {
		return nil, m.err
	}
	resp := &dto.GenerateTimetableResponse{ClassID: req.ClassID, Semester: req.Semester, Committed: !req.Preview}
	if req.Preview {
		resp.ProposalID = "proposal-1"
	}
	return resp, nil
}

func (m *timetableGeneratorMock) Commit(ctx context.Context, schoolID, proposalID string) (*dto.GenerateTimetableResponse, error) {
	if proposalID != "proposal-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &dto.GenerateTimetableResponse{ProposalID: proposalID, Committed: true}, nil
}

type timetableManagerMock struct {
	hit bool
}

func (m *timetableManagerMock) Get(ctx context.Context, schoolID, classID string, semester int) (*models.TimetableView, bool, error) {
	return &models.TimetableView{ClassID: classID, Semester: semester}, m.hit, nil
}

func (m *timetableManagerMock) Replace(ctx context.Context, schoolID string, req dto.ReplaceTimetableRequest) (*models.TimetableView, error) {
	return &models.TimetableView{ClassID: req.ClassID, Semester: req.Semester}, nil
}

func (m *timetableManagerMock) Delete(ctx context.Context, schoolID, classID string, semester int) error {
	return nil
}

func (m *timetableManagerMock) Timeslots(ctx context.Context, schoolID string) (*models.TimeslotOverview, error) {
	return &models.TimeslotOverview{Labels: []string{"08:00:00"}}, nil
}

type timetableExporterMock struct{}

func (timetableExporterMock) ExportTimetable(ctx context.Context, schoolID string, query dto.TimetableQuery) (*service.ExportResult, error) {
	return &service.ExportResult{Content: []byte("day,timeslot\n"), ContentType: "text/csv", Filename: "timetable.csv", Format: "csv"}, nil
}

type generationJobsMock struct{}

func (generationJobsMock) EnqueueBatch(ctx context.Context, schoolID string, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	return &dto.BatchGenerateResponse{BatchID: "batch-1", JobIDs: req.ClassIDs}, nil
}

func (generationJobsMock) Get(ctx context.Context, schoolID, id string) (*models.GenerationJob, error) {
	return &models.GenerationJob{ID: id, SchoolID: schoolID, Status: models.GenerationJobQueued}, nil
}

func buildTimetableRouter(gen *timetableGeneratorMock, manager *timetableManagerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(gen, manager, timetableExporterMock{}, generationJobsMock{})
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-School") != "" {
			c.Set(middleware.ContextSchoolKey, &models.JWTClaims{SchoolID: c.GetHeader("X-Test-School")})
		}
		c.Next()
	})
	router.POST("/timetables/generate", h.Generate)
	router.POST("/timetables/proposals/:id/commit", h.Commit)
	router.GET("/timetables", h.Get)
	router.PUT("/timetables", h.Replace)
	router.DELETE("/timetables", h.Delete)
	router.GET("/timetables/export", h.Export)
	router.GET("/timeslots", h.Timeslots)
	router.POST("/timetables/batch", h.Batch)
	router.GET("/timetables/jobs/:id", h.Job)
	return router
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-School", "school-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerate(t *testing.T) {
	gen := &timetableGeneratorMock{}
	router := buildTimetableRouter(gen, &timetableManagerMock{})

	w := performRequest(router, http.MethodPost, "/timetables/generate", `{"classId":"class-1","semester":2,"priorities":{"math":3}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "school-1", gen.schoolID)
	assert.Equal(t, 3, gen.captured.Priorities["math"])

	w = performRequest(router, http.MethodPost, "/timetables/generate", `{"classId":"class-1","semester":2,"preview":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"proposalId":"proposal-1"`)

	w = performRequest(router, http.MethodPost, "/timetables/generate", `{"classId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerateSurfacesConflicts(t *testing.T) {
	conflict := &models.TimetableConflictError{
		Message:   "1 lectures collide with existing teacher schedules",
		Conflicts: []models.TimetableConflict{{TeacherID: "teacher-1", Day: "Monday", Timeslot: "08:00:00", BusyClassID: "class-2"}},
	}
	gen := &timetableGeneratorMock{err: appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher conflict detected")}
	router := buildTimetableRouter(gen, &timetableManagerMock{})

	w := performRequest(router, http.MethodPost, "/timetables/generate", `{"classId":"class-1","semester":1}`)
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Data  models.TimetableConflictError `json:"data"`
		Error appErrors.Error               `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, appErrors.ErrConflict.Code, body.Error.Code)
	require.Len(t, body.Data.Conflicts, 1)
	assert.Equal(t, "class-2", body.Data.Conflicts[0].BusyClassID)
}

func TestTimetableHandlerAllocationFailure(t *testing.T) {
	gen := &timetableGeneratorMock{err: appErrors.ErrAllocationFailed}
	router := buildTimetableRouter(gen, &timetableManagerMock{})

	w := performRequest(router, http.MethodPost, "/timetables/generate", `{"classId":"class-1","semester":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "could not generate a valid timetable")
}

func TestTimetableHandlerCommit(t *testing.T) {
	router := buildTimetableRouter(&timetableGeneratorMock{}, &timetableManagerMock{})

	w := performRequest(router, http.MethodPost, "/timetables/proposals/proposal-1/commit", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodPost, "/timetables/proposals/unknown/commit", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerGetReportsCacheHit(t *testing.T) {
	router := buildTimetableRouter(&timetableGeneratorMock{}, &timetableManagerMock{hit: true})

	w := performRequest(router, http.MethodGet, "/timetables?classId=class-1&semester=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)

	w = performRequest(router, http.MethodGet, "/timetables?classId=class-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerEditsAndExports(t *testing.T) {
	router := buildTimetableRouter(&timetableGeneratorMock{}, &timetableManagerMock{})

	w := performRequest(router, http.MethodPut, "/timetables", `{"classId":"class-1","semester":1,"entries":[{"day":"Monday","timeslot":"08:00:00","subjectId":"math"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodDelete, "/timetables?classId=class-1&semester=1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = performRequest(router, http.MethodGet, "/timetables/export?classId=class-1&semester=1&format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")

	w = performRequest(router, http.MethodGet, "/timeslots", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerBatchAndJobs(t *testing.T) {
	router := buildTimetableRouter(&timetableGeneratorMock{}, &timetableManagerMock{})

	w := performRequest(router, http.MethodPost, "/timetables/batch", `{"semester":1,"classIds":["class-1","class-2"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"batchId":"batch-1"`)

	w = performRequest(router, http.MethodGet, "/timetables/jobs/job-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"QUEUED"`)
}

func TestTimetableHandlerRequiresSchool(t *testing.T) {
	router := buildTimetableRouter(&timetableGeneratorMock{}, &timetableManagerMock{})
	req, _ := http.NewRequest(http.MethodGet, "/timeslots", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
