package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type authServiceMock struct{}

func (authServiceMock) Register(ctx context.Context, req models.RegisterSchoolRequest) (*models.SchoolInfo, error) {
	if req.Username == "taken" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already registered")
	}
	return &models.SchoolInfo{ID: "school-1", Name: req.Name, Username: req.Username}, nil
}

func (authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", School: models.SchoolInfo{ID: "school-1"}}, nil
}

type curriculumMock struct {
	filter models.SubjectFilter
}

func (m *curriculumMock) ListTeachers(ctx context.Context, schoolID string) ([]models.Teacher, error) {
	return []models.Teacher{{ID: "teacher-1", SchoolID: schoolID, Name: "Budi"}}, nil
}

func (m *curriculumMock) CreateTeacher(ctx context.Context, schoolID string, req models.CreateTeacherRequest) (*models.Teacher, error) {
	return &models.Teacher{ID: "teacher-2", SchoolID: schoolID, Name: req.Name}, nil
}

func (m *curriculumMock) ListClasses(ctx context.Context, schoolID string) ([]models.Class, error) {
	return []models.Class{{ID: "class-1", SchoolID: schoolID, Name: "X-1"}}, nil
}

func (m *curriculumMock) CreateClass(ctx context.Context, schoolID string, req models.CreateClassRequest) (*models.Class, error) {
	return &models.Class{ID: "class-2", SchoolID: schoolID, Name: req.Name}, nil
}

func (m *curriculumMock) ListSubjects(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.SubjectDetail, error) {
	m.filter = filter
	return []models.SubjectDetail{}, nil
}

func (m *curriculumMock) CreateSubject(ctx context.Context, schoolID string, req models.CreateSubjectRequest) (*models.Subject, error) {
	if req.ClassID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return &models.Subject{ID: "subject-1", SchoolID: schoolID, ClassID: req.ClassID, Name: req.Name, Credits: req.Credits}, nil
}

func buildCurriculumRouter(curriculum *curriculumMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := NewAuthHandler(authServiceMock{})
	h := NewCurriculumHandler(curriculum)
	router := gin.New()
	router.POST("/auth/register", auth.Register)
	router.POST("/auth/login", auth.Login)
	scoped := router.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextSchoolKey, &models.JWTClaims{SchoolID: c.GetHeader("X-Test-School")})
		c.Next()
	})
	scoped.GET("/teachers", h.ListTeachers)
	scoped.POST("/teachers", h.CreateTeacher)
	scoped.GET("/classes", h.ListClasses)
	scoped.POST("/classes", h.CreateClass)
	scoped.GET("/subjects", h.ListSubjects)
	scoped.POST("/subjects", h.CreateSubject)
	return router
}

func TestAuthHandlerRegisterAndLogin(t *testing.T) {
	router := buildCurriculumRouter(&curriculumMock{})

	w := performRequest(router, http.MethodPost, "/auth/register", `{"name":"SMA 1","username":"sma1","password":"secret","start_time":"07:00","end_time":"13:00"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodPost, "/auth/register", `{"name":"SMA 1","username":"taken","password":"secret","start_time":"07:00","end_time":"13:00"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(router, http.MethodPost, "/auth/login", `{"username":"sma1","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"token"`)

	w = performRequest(router, http.MethodPost, "/auth/login", `{"username":"sma1","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performRequest(router, http.MethodPost, "/auth/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCurriculumHandlerRoutes(t *testing.T) {
	curriculum := &curriculumMock{}
	router := buildCurriculumRouter(curriculum)

	w := performRequest(router, http.MethodGet, "/teachers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"school_id":"school-1"`)

	w = performRequest(router, http.MethodPost, "/teachers", `{"name":"Sari"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodGet, "/classes", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodPost, "/classes", `{"name":"X-2"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodGet, "/subjects?classId=class-1&semester=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SubjectFilter{ClassID: "class-1", Semester: 2}, curriculum.filter)

	w = performRequest(router, http.MethodGet, "/subjects?semester=two", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(router, http.MethodPost, "/subjects", `{"name":"Math","class_id":"missing","teacher_id":"teacher-1","semester":1,"credits":3}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
