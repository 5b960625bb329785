package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timeslotSyncer interface {
	Sync(ctx context.Context, exec sqlx.ExtContext, schoolID string, labels []string) (map[string]string, error)
}

type timetableEntryStore interface {
	LockSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) error
	BusySlots(ctx context.Context, exec sqlx.ExtContext, schoolID string, teacherIDs []string, classID string, semester int) ([]models.TeacherBusySlot, error)
	DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string, semester int) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
}

// plannedEntry is a lecture waiting to be persisted.
type plannedEntry struct {
	Day       string
	Timeslot  string
	SubjectID string
	TeacherID string
}

type busyKey struct {
	teacherID string
	day       string
	timeslot  string
}

// timetableWriter replaces class timetables inside one transaction.
type timetableWriter struct {
	timeslots timeslotSyncer
	entries   timetableEntryStore
	tx        txProvider
}

// loadBusy indexes the cells taken by the teachers in other timetables of the school.
func loadBusy(ctx context.Context, store timetableEntryStore, exec sqlx.ExtContext, schoolID, classID string, semester int, teacherIDs []string) (map[busyKey]models.TeacherBusySlot, error) {
	slots, err := store.BusySlots(ctx, exec, schoolID, lo.Uniq(teacherIDs), classID, semester)
	if err != nil {
		return nil, err
	}
	busy := make(map[busyKey]models.TeacherBusySlot, len(slots))
	for _, slot := range slots {
		busy[busyKey{teacherID: slot.TeacherID, day: slot.Day, timeslot: slot.Timeslot}] = slot
	}
	return busy, nil
}

func teacherConflicts(planned []plannedEntry, busy map[busyKey]models.TeacherBusySlot) []models.TimetableConflict {
	var conflicts []models.TimetableConflict
	for _, entry := range planned {
		slot, ok := busy[busyKey{teacherID: entry.TeacherID, day: entry.Day, timeslot: entry.Timeslot}]
		if !ok {
			continue
		}
		conflicts = append(conflicts, models.TimetableConflict{
			TeacherID:    entry.TeacherID,
			SubjectID:    entry.SubjectID,
			Day:          entry.Day,
			Timeslot:     entry.Timeslot,
			BusyClassID:  slot.ClassID,
			BusySemester: slot.Semester,
			Dimension:    "teacher",
		})
	}
	return conflicts
}

// replace swaps the stored class timetable for planned. The school lock is taken before teacher
// clashes are re-checked so concurrent writers sharing a teacher cannot both pass the check.
func (w *timetableWriter) replace(ctx context.Context, schoolID, classID string, semester int, labels []string, planned []plannedEntry) (err error) {
	if w.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := w.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = w.entries.LockSchool(ctx, tx, schoolID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock school timetables")
	}

	teacherIDs := lo.Map(planned, func(e plannedEntry, _ int) string { return e.TeacherID })
	busy, err := loadBusy(ctx, w.entries, tx, schoolID, classID, semester, teacherIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedules")
	}
	if conflicts := teacherConflicts(planned, busy); len(conflicts) > 0 {
		return appErrors.Wrap(&models.TimetableConflictError{
			Message:   fmt.Sprintf("%d lectures collide with existing teacher schedules", len(conflicts)),
			Conflicts: conflicts,
		}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher conflict detected")
	}

	ids, err := w.timeslots.Sync(ctx, tx, schoolID, labels)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync timeslots")
	}

	if _, err = w.entries.DeleteByClass(ctx, tx, classID, semester); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable")
	}

	rows := make([]models.TimetableEntry, 0, len(planned))
	for _, entry := range planned {
		timeslotID, ok := ids[entry.Timeslot]
		if !ok {
			err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown timeslot %s", entry.Timeslot))
			return err
		}
		rows = append(rows, models.TimetableEntry{
			SchoolID:   schoolID,
			ClassID:    classID,
			SubjectID:  entry.SubjectID,
			TeacherID:  entry.TeacherID,
			Semester:   semester,
			Day:        entry.Day,
			TimeslotID: timeslotID,
		})
	}
	if err = w.entries.InsertBatch(ctx, tx, rows); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
	}
	return nil
}
