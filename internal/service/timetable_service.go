package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/allocator"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/timeslot"
)

type timetableDetailReader interface {
	ListDetails(ctx context.Context, classID string, semester int) ([]models.TimetableEntryDetail, error)
}

type timetableViewCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Evict(ctx context.Context, keys ...string) error
}

// TimetableServiceConfig tunes timetable view caching.
type TimetableServiceConfig struct {
	CacheTTL time.Duration
}

// TimetableService renders, edits and removes stored class timetables.
type TimetableService struct {
	schools   schedulerSchoolReader
	classes   schedulerClassReader
	subjects  schedulerSubjectReader
	details   timetableDetailReader
	entries   timetableEntryStore
	writer    *timetableWriter
	cache     timetableViewCache
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
}

// NewTimetableService constructs the service.
func NewTimetableService(
	schools schedulerSchoolReader,
	classes schedulerClassReader,
	subjects schedulerSubjectReader,
	details timetableDetailReader,
	timeslots timeslotSyncer,
	entries timetableEntryStore,
	tx txProvider,
	cache timetableViewCache,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		schools:   schools,
		classes:   classes,
		subjects:  subjects,
		details:   details,
		entries:   entries,
		writer:    &timetableWriter{timeslots: timeslots, entries: entries, tx: tx},
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Get returns the class timetable. The boolean reports whether it was served from cache.
func (s *TimetableService) Get(ctx context.Context, schoolID, classID string, semester int) (*models.TimetableView, bool, error) {
	if err := s.validator.Struct(dto.TimetableQuery{ClassID: classID, Semester: semester}); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	key := TimetableCacheKey(schoolID, classID, semester)
	if s.cache != nil {
		var cached models.TimetableView
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	view, err := s.build(ctx, schoolID, classID, semester)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache timetable", zap.String("key", key), zap.Error(err))
		}
	}
	return view, false, nil
}

// Replace overwrites the class timetable with manually supplied lectures.
func (s *TimetableService) Replace(ctx context.Context, schoolID string, req dto.ReplaceTimetableRequest) (*models.TimetableView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if _, err := s.classes.FindByID(ctx, schoolID, req.ClassID); err != nil {
		return nil, notFoundOr(err, "class not found", "failed to load class")
	}
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		return nil, notFoundOr(err, "school not found", "failed to load school")
	}
	labels, err := schoolLabels(school)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListForClass(ctx, req.ClassID, req.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	bySubject := lo.KeyBy(subjects, func(sub models.Subject) string { return sub.ID })

	planned := make([]plannedEntry, 0, len(req.Entries))
	schedule := make(allocator.Schedule, 0, len(req.Entries))
	for _, entry := range req.Entries {
		sub, ok := bySubject[entry.SubjectID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not taught to this class in semester %d", entry.SubjectID, req.Semester))
		}
		label, err := timeslot.Normalize(entry.Timeslot)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid timeslot %q", entry.Timeslot))
		}
		planned = append(planned, plannedEntry{Day: entry.Day, Timeslot: label, SubjectID: sub.ID, TeacherID: sub.TeacherID})
		schedule = append(schedule, allocator.Placement{Day: entry.Day, Timeslot: label, Subject: sub.ID})
	}

	grid := allocator.Input{Timeslots: labels, Days: allocator.Weekdays}
	if violations := allocator.Verify(grid, schedule, false); len(violations) > 0 {
		messages := lo.Map(violations, func(v allocator.Violation, _ int) string { return v.Message })
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(messages, "; "))
	}

	if err := s.writer.replace(ctx, schoolID, req.ClassID, req.Semester, labels, planned); err != nil {
		return nil, err
	}
	s.evict(ctx, schoolID, req.ClassID, req.Semester)
	s.logger.Info("timetable replaced",
		zap.String("school_id", schoolID),
		zap.String("class_id", req.ClassID),
		zap.Int("semester", req.Semester),
		zap.Int("entries", len(planned)),
	)
	return s.build(ctx, schoolID, req.ClassID, req.Semester)
}

// Delete removes the stored timetable of the class and semester.
func (s *TimetableService) Delete(ctx context.Context, schoolID, classID string, semester int) error {
	if _, err := s.classes.FindByID(ctx, schoolID, classID); err != nil {
		return notFoundOr(err, "class not found", "failed to load class")
	}
	removed, err := s.entries.DeleteByClass(ctx, nil, classID, semester)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	if removed == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	s.evict(ctx, schoolID, classID, semester)
	return nil
}

// Timeslots describes the school's day: lecture labels plus the layout with breaks.
func (s *TimetableService) Timeslots(ctx context.Context, schoolID string) (*models.TimeslotOverview, error) {
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		return nil, notFoundOr(err, "school not found", "failed to load school")
	}
	if !school.HasDailyConfig() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "school timeslots are not configured")
	}
	slots, err := timeslot.Generate(DailyConfigOf(school), true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "school timeslot configuration is invalid")
	}
	overview := &models.TimeslotOverview{Labels: []string{}, Slots: make([]models.VisualSlot, 0, len(slots))}
	for _, slot := range slots {
		overview.Slots = append(overview.Slots, models.VisualSlot{Time: slot.Time, Type: slot.Type})
		if slot.Type == timeslot.KindLecture {
			overview.Labels = append(overview.Labels, slot.Time)
		}
	}
	return overview, nil
}

func (s *TimetableService) evict(ctx context.Context, schoolID, classID string, semester int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, TimetableCacheKey(schoolID, classID, semester)); err != nil {
		s.logger.Warn("failed to evict timetable cache", zap.String("class_id", classID), zap.Error(err))
	}
}

// build renders the stored entries into a weekday by timeslot grid.
func (s *TimetableService) build(ctx context.Context, schoolID, classID string, semester int) (*models.TimetableView, error) {
	class, err := s.classes.FindByID(ctx, schoolID, classID)
	if err != nil {
		return nil, notFoundOr(err, "class not found", "failed to load class")
	}
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		return nil, notFoundOr(err, "school not found", "failed to load school")
	}
	entries, err := s.details.ListDetails(ctx, classID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	view := &models.TimetableView{
		ClassID:   class.ID,
		ClassName: class.Name,
		Semester:  semester,
		Days:      allocator.Weekdays,
		Timeslots: []string{},
		Slots:     []models.VisualSlot{},
		Grid:      make(map[string]models.TimetableCell, len(entries)),
		Entries:   entries,
	}
	if view.Entries == nil {
		view.Entries = []models.TimetableEntryDetail{}
	}

	if school.HasDailyConfig() {
		slots, err := timeslot.Generate(DailyConfigOf(school), true)
		if err != nil {
			s.logger.Warn("school timeslot configuration is invalid", zap.String("school_id", schoolID), zap.Error(err))
		}
		for _, slot := range slots {
			view.Slots = append(view.Slots, models.VisualSlot{Time: slot.Time, Type: slot.Type})
			if slot.Type == timeslot.KindLecture {
				view.Timeslots = append(view.Timeslots, slot.Time)
			}
		}
	}
	// Entries stored under labels from an older configuration still get a row.
	known := lo.SliceToMap(view.Timeslots, func(label string) (string, bool) { return label, true })
	var extra []string
	for _, entry := range entries {
		if !known[entry.Timeslot] {
			known[entry.Timeslot] = true
			extra = append(extra, entry.Timeslot)
		}
	}
	if len(extra) > 0 {
		view.Timeslots = append(view.Timeslots, extra...)
		sort.Strings(view.Timeslots)
		view.Slots = mergeVisualSlots(view.Slots, extra)
	}

	for _, entry := range entries {
		view.Grid[gridKey(entry.Day, entry.Timeslot)] = models.TimetableCell{
			SubjectID:   entry.SubjectID,
			SubjectName: entry.SubjectName,
			TeacherID:   entry.TeacherID,
			TeacherName: entry.TeacherName,
		}
	}
	order := cellOrder(view.Timeslots)
	sort.SliceStable(view.Entries, func(i, j int) bool {
		return order(view.Entries[i].Day, view.Entries[i].Timeslot) < order(view.Entries[j].Day, view.Entries[j].Timeslot)
	})
	return view, nil
}

// gridKey is the "Day_HH:MM:SS" key of a timetable grid cell.
func gridKey(day, label string) string {
	return day + "_" + label
}

func mergeVisualSlots(slots []models.VisualSlot, labels []string) []models.VisualSlot {
	for _, label := range labels {
		slots = append(slots, models.VisualSlot{Time: label, Type: timeslot.KindLecture})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots
}
