package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type curriculumTeacherRepository interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.Teacher, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Teacher, error)
	ExistsByName(ctx context.Context, schoolID, name string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
}

type curriculumClassRepository interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.Class, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Class, error)
	ExistsByName(ctx context.Context, schoolID, name string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
}

type curriculumSubjectRepository interface {
	List(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.SubjectDetail, error)
	ExistsByName(ctx context.Context, classID string, semester int, name string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
}

// CurriculumService manages the teachers, classes and subjects of a school.
type CurriculumService struct {
	teachers  curriculumTeacherRepository
	classes   curriculumClassRepository
	subjects  curriculumSubjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCurriculumService builds the service.
func NewCurriculumService(teachers curriculumTeacherRepository, classes curriculumClassRepository, subjects curriculumSubjectRepository, validate *validator.Validate, logger *zap.Logger) *CurriculumService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumService{teachers: teachers, classes: classes, subjects: subjects, validator: validate, logger: logger}
}

// ListTeachers returns the school's teachers.
func (s *CurriculumService) ListTeachers(ctx context.Context, schoolID string) ([]models.Teacher, error) {
	teachers, err := s.teachers.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return teachers, nil
}

// CreateTeacher registers a teacher for the school.
func (s *CurriculumService) CreateTeacher(ctx context.Context, schoolID string, req models.CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	name := strings.TrimSpace(req.Name)
	exists, err := s.teachers.ExistsByName(ctx, schoolID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already exists")
	}

	teacher := &models.Teacher{SchoolID: schoolID, Name: name}
	if email := strings.TrimSpace(req.Email); email != "" {
		teacher.Email = &email
	}
	if err := s.teachers.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("school_id", schoolID), zap.String("teacher_id", teacher.ID))
	return teacher, nil
}

// ListClasses returns the school's classes.
func (s *CurriculumService) ListClasses(ctx context.Context, schoolID string) ([]models.Class, error) {
	classes, err := s.classes.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	if classes == nil {
		classes = []models.Class{}
	}
	return classes, nil
}

// CreateClass adds a class; names are unique per school.
func (s *CurriculumService) CreateClass(ctx context.Context, schoolID string, req models.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	name := strings.TrimSpace(req.Name)
	exists, err := s.classes.ExistsByName(ctx, schoolID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class already exists")
	}

	class := &models.Class{SchoolID: schoolID, Name: name}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("school_id", schoolID), zap.String("class_id", class.ID))
	return class, nil
}

// ListSubjects returns subjects filtered by class and semester.
func (s *CurriculumService) ListSubjects(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.SubjectDetail, error) {
	subjects, err := s.subjects.List(ctx, schoolID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	if subjects == nil {
		subjects = []models.SubjectDetail{}
	}
	return subjects, nil
}

// CreateSubject adds a subject to a class semester.
func (s *CurriculumService) CreateSubject(ctx context.Context, schoolID string, req models.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if _, err := s.classes.FindByID(ctx, schoolID, req.ClassID); err != nil {
		return nil, notFoundOr(err, "class not found", "failed to load class")
	}
	if _, err := s.teachers.FindByID(ctx, schoolID, req.TeacherID); err != nil {
		return nil, notFoundOr(err, "teacher not found", "failed to load teacher")
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.subjects.ExistsByName(ctx, req.ClassID, req.Semester, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject already exists for this class and semester")
	}

	subject := &models.Subject{
		SchoolID:  schoolID,
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
		Name:      name,
		Semester:  req.Semester,
		Credits:   req.Credits,
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.logger.Info("subject created", zap.String("school_id", schoolID), zap.String("subject_id", subject.ID), zap.Int("credits", subject.Credits))
	return subject, nil
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
