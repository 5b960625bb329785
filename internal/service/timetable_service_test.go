package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type timetableFixture struct {
	service *TimetableService
	details *detailReaderStub
	entries *timetableEntryStoreStub
	cache   *viewCacheStub
}

func newTimetableFixture(t *testing.T, tx txProvider) *timetableFixture {
	t.Helper()
	start, end, breakStart := "08:00", "12:00", "10:00"
	schools := &schoolReaderStub{school: &models.School{
		ID: "school-1", StartTime: &start, EndTime: &end, LectureDuration: 60, BreakStartTime: &breakStart, BreakDuration: 30,
	}}
	subjects := &subjectListStub{items: []models.Subject{
		{ID: "math", ClassID: "class-1", TeacherID: "teacher-1", Name: "Math", Semester: 1, Credits: 2},
		{ID: "art", ClassID: "class-1", TeacherID: "teacher-2", Name: "Art", Semester: 1, Credits: 1},
	}}
	details := &detailReaderStub{}
	entries := &timetableEntryStoreStub{}
	cache := newViewCacheStub()
	svc := NewTimetableService(schools, classLookupStub{}, subjects, details, timeslotSyncStub{}, entries, tx, cache, nil, nil, TimetableServiceConfig{CacheTTL: time.Minute})
	return &timetableFixture{service: svc, details: details, entries: entries, cache: cache}
}

func TestTimetableServiceGetBuildsGridAndCaches(t *testing.T) {
	fx := newTimetableFixture(t, noopTxProvider{})
	fx.details.items = []models.TimetableEntryDetail{
		detail("math", "teacher-1", "Monday", "09:00:00", "Math", "Budi"),
		detail("art", "teacher-2", "Monday", "08:00:00", "Art", "Sari"),
	}

	view, hit, err := fx.service.Get(context.Background(), "school-1", "class-1", 1)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"08:00:00", "09:00:00", "10:30:00"}, view.Timeslots)
	assert.Equal(t, []models.VisualSlot{
		{Time: "08:00:00", Type: "lecture"},
		{Time: "09:00:00", Type: "lecture"},
		{Time: "10:00:00", Type: "break"},
		{Time: "10:30:00", Type: "lecture"},
	}, view.Slots)
	assert.Equal(t, "Math", view.Grid["Monday_09:00:00"].SubjectName)
	assert.Equal(t, "Sari", view.Grid["Monday_08:00:00"].TeacherName)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "art", view.Entries[0].SubjectID)

	cached, hit, err := fx.service.Get(context.Background(), "school-1", "class-1", 1)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, view.Grid, cached.Grid)
}

func TestTimetableServiceGetKeepsLegacyLabels(t *testing.T) {
	fx := newTimetableFixture(t, noopTxProvider{})
	fx.details.items = []models.TimetableEntryDetail{
		detail("math", "teacher-1", "Tuesday", "13:00:00", "Math", "Budi"),
	}

	view, _, err := fx.service.Get(context.Background(), "school-1", "class-1", 1)
	require.NoError(t, err)
	assert.Contains(t, view.Timeslots, "13:00:00")
	assert.Equal(t, "13:00:00", view.Slots[len(view.Slots)-1].Time)
}

func TestTimetableServiceReplace(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTimetableFixture(t, tx)
	fx.cache.items[TimetableCacheKey("school-1", "class-1", 1)] = []byte(`{}`)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := fx.service.Replace(context.Background(), "school-1", dto.ReplaceTimetableRequest{
		ClassID:  "class-1",
		Semester: 1,
		Entries: []dto.ManualTimetableEntry{
			{Day: "Monday", Timeslot: "08:00", SubjectID: "math"},
			{Day: "Wednesday", Timeslot: "10:30:00", SubjectID: "art"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fx.entries.inserted, 2)
	assert.Equal(t, "ts-08:00:00", fx.entries.inserted[0].TimeslotID)
	assert.Equal(t, "teacher-2", fx.entries.inserted[1].TeacherID)
	assert.NotContains(t, fx.cache.items, TimetableCacheKey("school-1", "class-1", 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceReplaceRejectsInvalidEntries(t *testing.T) {
	fx := newTimetableFixture(t, noopTxProvider{})
	ctx := context.Background()

	cases := map[string][]dto.ManualTimetableEntry{
		"double booked": {
			{Day: "Monday", Timeslot: "08:00:00", SubjectID: "math"},
			{Day: "Monday", Timeslot: "08:00:00", SubjectID: "art"},
		},
		"unknown subject": {{Day: "Monday", Timeslot: "08:00:00", SubjectID: "history"}},
		"off grid":        {{Day: "Monday", Timeslot: "10:00:00", SubjectID: "math"}},
		"bad day":         {{Day: "Sunday", Timeslot: "08:00:00", SubjectID: "math"}},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.service.Replace(ctx, "school-1", dto.ReplaceTimetableRequest{ClassID: "class-1", Semester: 1, Entries: entries})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestTimetableServiceReplaceDetectsTeacherConflict(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTimetableFixture(t, tx)
	fx.entries.busy = []models.TeacherBusySlot{
		{TeacherID: "teacher-1", ClassID: "class-2", Semester: 1, Day: "Monday", Timeslot: "08:00:00"},
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := fx.service.Replace(context.Background(), "school-1", dto.ReplaceTimetableRequest{
		ClassID:  "class-1",
		Semester: 1,
		Entries:  []dto.ManualTimetableEntry{{Day: "Monday", Timeslot: "08:00:00", SubjectID: "math"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceDelete(t *testing.T) {
	fx := newTimetableFixture(t, noopTxProvider{})
	ctx := context.Background()

	err := fx.service.Delete(ctx, "school-1", "class-1", 1)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	fx.entries.inserted = []models.TimetableEntry{{ID: "e-1"}}
	require.NoError(t, fx.service.Delete(ctx, "school-1", "class-1", 1))

	err = fx.service.Delete(ctx, "school-1", "missing", 1)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceTimeslots(t *testing.T) {
	fx := newTimetableFixture(t, noopTxProvider{})

	overview, err := fx.service.Timeslots(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00:00", "09:00:00", "10:30:00"}, overview.Labels)
	assert.Len(t, overview.Slots, 4)
}

func detail(subjectID, teacherID, day, label, subject, teacher string) models.TimetableEntryDetail {
	return models.TimetableEntryDetail{
		TimetableEntry: models.TimetableEntry{ClassID: "class-1", SubjectID: subjectID, TeacherID: teacherID, Semester: 1, Day: day},
		Timeslot:       label,
		SubjectName:    subject,
		TeacherName:    teacher,
	}
}

type detailReaderStub struct {
	items []models.TimetableEntryDetail
}

func (s *detailReaderStub) ListDetails(ctx context.Context, classID string, semester int) ([]models.TimetableEntryDetail, error) {
	return append([]models.TimetableEntryDetail(nil), s.items...), nil
}

type viewCacheStub struct {
	items map[string][]byte
}

func newViewCacheStub() *viewCacheStub {
	return &viewCacheStub{items: make(map[string][]byte)}
}

func (c *viewCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *viewCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

func (c *viewCacheStub) Evict(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}
