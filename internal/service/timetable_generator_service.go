package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/allocator"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/timeslot"
)

// Allocation outcomes recorded by the metrics service.
const (
	allocationOutcomeSuccess    = "success"
	allocationOutcomeFailed     = "failed"
	allocationOutcomeInfeasible = "infeasible"
)

type schedulerClassReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Class, error)
}

type schedulerSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type schedulerSubjectReader interface {
	ListForClass(ctx context.Context, classID string, semester int) ([]models.Subject, error)
}

type timetableAllocator interface {
	Allocate(ctx context.Context, in allocator.Input) (allocator.Result, error)
}

type timetableCacheEvictor interface {
	Evict(ctx context.Context, keys ...string) error
}

// TimetableGeneratorService builds class timetables with the allocator and persists them.
type TimetableGeneratorService struct {
	schools   schedulerSchoolReader
	classes   schedulerClassReader
	subjects  schedulerSubjectReader
	entries   timetableEntryStore
	writer    *timetableWriter
	allocator timetableAllocator
	cache     timetableCacheEvictor
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
	now       func() time.Time
}

// TimetableGeneratorConfig governs generator behaviour.
type TimetableGeneratorConfig struct {
	ProposalTTL time.Duration
}

// NewTimetableGeneratorService wires generator dependencies.
func NewTimetableGeneratorService(
	schools schedulerSchoolReader,
	classes schedulerClassReader,
	subjects schedulerSubjectReader,
	timeslots timeslotSyncer,
	entries timetableEntryStore,
	tx txProvider,
	alloc timetableAllocator,
	cache timetableCacheEvictor,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if alloc == nil {
		alloc = allocator.New(allocator.Config{Logger: logger})
	}
	return &TimetableGeneratorService{
		schools:   schools,
		classes:   classes,
		subjects:  subjects,
		entries:   entries,
		writer:    &timetableWriter{timeslots: timeslots, entries: entries, tx: tx},
		allocator: alloc,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
		now:       time.Now,
	}
}

type generationPlan struct {
	class    *models.Class
	labels   []string
	subjects map[string]models.Subject
	input    allocator.Input
}

// Generate allocates a timetable for the class and semester. Without preview the result
// replaces the stored timetable; with preview it is kept as a proposal until committed.
func (s *TimetableGeneratorService) Generate(ctx context.Context, schoolID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	plan, err := s.plan(ctx, schoolID, req.ClassID, req.Semester, req.Priorities)
	if err != nil {
		return nil, err
	}

	if total, capacity := plan.input.TotalCredits(), plan.input.Capacity(); total > capacity {
		s.metrics.ObserveAllocation(allocationOutcomeInfeasible, 0, 0, 0)
		return nil, appErrors.Clone(appErrors.ErrInfeasibleInput,
			fmt.Sprintf("total credits %d exceed the %d available timeslots", total, capacity))
	}

	started := time.Now()
	result, err := s.allocator.Allocate(ctx, plan.input)
	elapsed := time.Since(started)
	if err != nil {
		s.metrics.ObserveAllocation(allocationOutcomeFailed, result.Attempts, result.Completed, elapsed)
		s.logger.Warn("timetable allocation failed",
			zap.String("school_id", schoolID),
			zap.String("class_id", req.ClassID),
			zap.Int("semester", req.Semester),
			zap.Int("attempts", result.Attempts),
			zap.Error(err),
		)
		if errors.Is(err, allocator.ErrAllocationFailed) {
			return nil, appErrors.Wrap(err, appErrors.ErrAllocationFailed.Code, appErrors.ErrAllocationFailed.Status, appErrors.ErrAllocationFailed.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "allocation interrupted")
	}
	if violations := allocator.Verify(plan.input, result.Schedule, true); len(violations) > 0 {
		s.metrics.ObserveAllocation(allocationOutcomeFailed, result.Attempts, result.Completed, elapsed)
		return nil, appErrors.Clone(appErrors.ErrInternal, violations[0].Message)
	}
	s.metrics.ObserveAllocation(allocationOutcomeSuccess, result.Attempts, result.Completed, elapsed)

	planned, slots := plan.materialise(result.Schedule)
	resp := &dto.GenerateTimetableResponse{
		ClassID:  req.ClassID,
		Semester: req.Semester,
		Score:    result.Score,
		Slots:    slots,
		Stats: dto.AllocationStats{
			Strategy:          result.Strategy,
			Attempts:          result.Attempts,
			CompletedAttempts: result.Completed,
			BestAttempt:       result.BestAttempt,
			HighPriority:      result.HighPriority,
			DurationMillis:    elapsed.Milliseconds(),
		},
	}

	if req.Preview {
		requestedAt := s.now()
		expires := requestedAt.Add(s.store.ttl)
		resp.ProposalID = uuid.NewString()
		resp.ExpiresAt = &expires
		s.store.Save(timetableProposal{
			ProposalID:  resp.ProposalID,
			SchoolID:    schoolID,
			ClassID:     req.ClassID,
			Semester:    req.Semester,
			Labels:      plan.labels,
			Planned:     planned,
			Response:    *resp,
			RequestedAt: requestedAt,
		})
		s.logger.Sugar().Infow("timetable proposal stored",
			"proposal_id", resp.ProposalID,
			"class_id", req.ClassID,
			"semester", req.Semester,
			"score", result.Score,
		)
		return resp, nil
	}

	if err := s.persist(ctx, schoolID, req.ClassID, req.Semester, plan.labels, planned); err != nil {
		return nil, err
	}
	resp.Committed = true
	s.logger.Info("timetable generated",
		zap.String("school_id", schoolID),
		zap.String("class_id", req.ClassID),
		zap.Int("semester", req.Semester),
		zap.Int("score", result.Score),
		zap.Int("attempts", result.Attempts),
		zap.Int("completed", result.Completed),
		zap.Duration("duration", elapsed),
	)
	return resp, nil
}

// Commit persists a previously previewed proposal.
func (s *TimetableGeneratorService) Commit(ctx context.Context, schoolID, proposalID string) (*dto.GenerateTimetableResponse, error) {
	proposal, ok := s.store.Get(proposalID, s.now())
	if !ok || proposal.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if err := s.persist(ctx, schoolID, proposal.ClassID, proposal.Semester, proposal.Labels, proposal.Planned); err != nil {
		return nil, err
	}
	s.store.Delete(proposalID)

	resp := proposal.Response
	resp.Committed = true
	s.logger.Info("timetable proposal committed",
		zap.String("proposal_id", proposalID),
		zap.String("class_id", proposal.ClassID),
		zap.Int("semester", proposal.Semester),
	)
	return &resp, nil
}

func (s *TimetableGeneratorService) persist(ctx context.Context, schoolID, classID string, semester int, labels []string, planned []plannedEntry) error {
	if err := s.writer.replace(ctx, schoolID, classID, semester, labels, planned); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Evict(ctx, TimetableCacheKey(schoolID, classID, semester)); err != nil {
			s.logger.Warn("failed to evict timetable cache", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return nil
}

// plan loads everything one allocation needs for the class and semester.
func (s *TimetableGeneratorService) plan(ctx context.Context, schoolID, classID string, semester int, priorities map[string]int) (*generationPlan, error) {
	class, err := s.classes.FindByID(ctx, schoolID, classID)
	if err != nil {
		return nil, notFoundOr(err, "class not found", "failed to load class")
	}

	subjects, err := s.subjects.ListForClass(ctx, classID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	if len(subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class has no subjects for this semester")
	}

	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		return nil, notFoundOr(err, "school not found", "failed to load school")
	}
	labels, err := schoolLabels(school)
	if err != nil {
		return nil, err
	}

	bySubject := lo.KeyBy(subjects, func(sub models.Subject) string { return sub.ID })
	for id := range priorities {
		if _, ok := bySubject[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("priority given for unknown subject %s", id))
		}
	}

	input := allocator.Input{
		Subjects:   make([]string, 0, len(subjects)),
		Timeslots:  labels,
		Credits:    make(map[string]int, len(subjects)),
		Priorities: make(map[string]int, len(subjects)),
		Days:       allocator.Weekdays,
	}
	for _, sub := range subjects {
		input.Subjects = append(input.Subjects, sub.ID)
		input.Credits[sub.ID] = sub.Credits
		priority, ok := priorities[sub.ID]
		if !ok {
			priority = 1
		}
		input.Priorities[sub.ID] = priority
	}

	teacherIDs := lo.Map(subjects, func(sub models.Subject, _ int) string { return sub.TeacherID })
	busy, err := loadBusy(ctx, s.entries, nil, schoolID, classID, semester, teacherIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedules")
	}
	input.InvalidSlots = invalidSlotsFor(subjects, busy)

	return &generationPlan{class: class, labels: labels, subjects: bySubject, input: input}, nil
}

// invalidSlotsFor maps every subject to the cells its teacher already lectures in.
func invalidSlotsFor(subjects []models.Subject, busy map[busyKey]models.TeacherBusySlot) map[string]allocator.CellSet {
	byTeacher := make(map[string]allocator.CellSet)
	for key := range busy {
		set, ok := byTeacher[key.teacherID]
		if !ok {
			set = allocator.NewCellSet()
			byTeacher[key.teacherID] = set
		}
		set.Add(allocator.Cell{Day: key.day, Timeslot: key.timeslot})
	}
	invalid := make(map[string]allocator.CellSet)
	for _, sub := range subjects {
		if set, ok := byTeacher[sub.TeacherID]; ok {
			invalid[sub.ID] = set
		}
	}
	return invalid
}

// materialise turns placements into persisted entries and ordered response slots.
func (p *generationPlan) materialise(schedule allocator.Schedule) ([]plannedEntry, []dto.TimetableSlotProposal) {
	planned := make([]plannedEntry, 0, len(schedule))
	slots := make([]dto.TimetableSlotProposal, 0, len(schedule))
	for _, placement := range schedule {
		sub := p.subjects[placement.Subject]
		planned = append(planned, plannedEntry{
			Day:       placement.Day,
			Timeslot:  placement.Timeslot,
			SubjectID: sub.ID,
			TeacherID: sub.TeacherID,
		})
		slots = append(slots, dto.TimetableSlotProposal{
			Day:         placement.Day,
			Timeslot:    placement.Timeslot,
			SubjectID:   sub.ID,
			SubjectName: sub.Name,
			TeacherID:   sub.TeacherID,
		})
	}
	order := cellOrder(p.labels)
	sort.SliceStable(slots, func(i, j int) bool {
		return order(slots[i].Day, slots[i].Timeslot) < order(slots[j].Day, slots[j].Timeslot)
	})
	return planned, slots
}

// schoolLabels resolves the lecture labels of the school's day.
func schoolLabels(school *models.School) ([]string, error) {
	if school == nil || !school.HasDailyConfig() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "school timeslots are not configured")
	}
	labels, err := timeslot.Labels(DailyConfigOf(school))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "school timeslot configuration is invalid")
	}
	if len(labels) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "school day has no lecture timeslots")
	}
	return labels, nil
}

// cellOrder ranks cells by weekday then label position. Unknown values sort last.
func cellOrder(labels []string) func(day, label string) int {
	dayIndex := make(map[string]int, len(allocator.Weekdays))
	for i, d := range allocator.Weekdays {
		dayIndex[strings.ToLower(d)] = i
	}
	labelIndex := make(map[string]int, len(labels))
	for i, l := range labels {
		labelIndex[l] = i
	}
	width := len(labels) + 1
	return func(day, label string) int {
		d, ok := dayIndex[strings.ToLower(day)]
		if !ok {
			d = len(allocator.Weekdays)
		}
		l, ok := labelIndex[label]
		if !ok {
			l = len(labels)
		}
		return d*width + l
	}
}

type timetableProposal struct {
	ProposalID  string
	SchoolID    string
	ClassID     string
	Semester    int
	Labels      []string
	Planned     []plannedEntry
	Response    dto.GenerateTimetableResponse
	RequestedAt time.Time
}

// proposalStore keeps previewed timetables in memory. Expiry is judged against the time the
// caller passes in so the service clock stays the only clock.
type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]timetableProposal),
	}
}

// Save stores proposal and drops every entry that expired before proposal.RequestedAt.
func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.items {
		if s.expired(existing, proposal.RequestedAt) {
			delete(s.items, id)
		}
	}
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string, now time.Time) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if s.expired(proposal, now) {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *proposalStore) expired(proposal timetableProposal, now time.Time) bool {
	return now.Sub(proposal.RequestedAt) > s.ttl
}
