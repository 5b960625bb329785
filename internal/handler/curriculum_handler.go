package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type curriculumManager interface {
	ListTeachers(ctx context.Context, schoolID string) ([]models.Teacher, error)
	CreateTeacher(ctx context.Context, schoolID string, req models.CreateTeacherRequest) (*models.Teacher, error)
	ListClasses(ctx context.Context, schoolID string) ([]models.Class, error)
	CreateClass(ctx context.Context, schoolID string, req models.CreateClassRequest) (*models.Class, error)
	ListSubjects(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.SubjectDetail, error)
	CreateSubject(ctx context.Context, schoolID string, req models.CreateSubjectRequest) (*models.Subject, error)
}

// CurriculumHandler exposes teachers, classes and subjects of the authenticated school.
type CurriculumHandler struct {
	service curriculumManager
}

// NewCurriculumHandler constructs the handler.
func NewCurriculumHandler(svc curriculumManager) *CurriculumHandler {
	return &CurriculumHandler{service: svc}
}

// ListTeachers godoc
// @Summary List teachers
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *CurriculumHandler) ListTeachers(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	teachers, err := h.service.ListTeachers(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// CreateTeacher godoc
// @Summary Create teacher
// @Tags Curriculum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers [post]
func (h *CurriculumHandler) CreateTeacher(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.service.CreateTeacher(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// ListClasses godoc
// @Summary List classes
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *CurriculumHandler) ListClasses(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	classes, err := h.service.ListClasses(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// CreateClass godoc
// @Summary Create class
// @Tags Curriculum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes [post]
func (h *CurriculumHandler) CreateClass(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}
	class, err := h.service.CreateClass(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// ListSubjects godoc
// @Summary List subjects
// @Tags Curriculum
// @Produce json
// @Security BearerAuth
// @Param classId query string false "Filter by class"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *CurriculumHandler) ListSubjects(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.SubjectFilter{ClassID: c.Query("classId")}
	if raw := c.Query("semester"); raw != "" {
		semester, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be a number"))
			return
		}
		filter.Semester = semester
	}
	subjects, err := h.service.ListSubjects(c.Request.Context(), schoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// CreateSubject godoc
// @Summary Create subject
// @Tags Curriculum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects [post]
func (h *CurriculumHandler) CreateSubject(c *gin.Context) {
	schoolID, err := schoolIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	subject, err := h.service.CreateSubject(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}
