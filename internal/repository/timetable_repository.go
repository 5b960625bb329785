package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// TimetableRepository persists committed timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListDetails returns the entries of a class timetable with labels and names.
func (r *TimetableRepository) ListDetails(ctx context.Context, classID string, semester int) ([]models.TimetableEntryDetail, error) {
	const query = `SELECT te.id, te.school_id, te.class_id, te.subject_id, te.teacher_id, te.semester, te.day, te.timeslot_id, te.created_at,
	ts.label AS timeslot, s.name AS subject_name, t.name AS teacher_name
FROM timetable_entries te
JOIN timeslots ts ON ts.id = te.timeslot_id
JOIN subjects s ON s.id = te.subject_id
JOIN teachers t ON t.id = te.teacher_id
WHERE te.class_id = $1 AND te.semester = $2
ORDER BY ts.label ASC, te.day ASC`
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, classID, semester); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// BusySlots returns the cells taken by the given teachers in every other class timetable of the school.
func (r *TimetableRepository) BusySlots(ctx context.Context, exec sqlx.ExtContext, schoolID string, teacherIDs []string, classID string, semester int) ([]models.TeacherBusySlot, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT te.teacher_id, te.class_id, te.semester, te.day, ts.label AS timeslot
FROM timetable_entries te
JOIN timeslots ts ON ts.id = te.timeslot_id
WHERE te.school_id = $1 AND te.teacher_id = ANY($2) AND NOT (te.class_id = $3 AND te.semester = $4)`
	var slots []models.TeacherBusySlot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, schoolID, pq.Array(teacherIDs), classID, semester); err != nil {
		return nil, fmt.Errorf("list teacher busy slots: %w", err)
	}
	return slots, nil
}

// LockSchool serialises timetable writes of one school until the surrounding transaction ends.
func (r *TimetableRepository) LockSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := r.exec(exec).ExecContext(ctx, query, "timetable:"+schoolID); err != nil {
		return fmt.Errorf("lock school timetables: %w", err)
	}
	return nil
}

// DeleteByClass removes a class timetable and reports the number of removed entries.
func (r *TimetableRepository) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string, semester int) (int64, error) {
	const query = `DELETE FROM timetable_entries WHERE class_id = $1 AND semester = $2`
	res, err := r.exec(exec).ExecContext(ctx, query, classID, semester)
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries: %w", err)
	}
	return affected, nil
}

// InsertBatch stores timetable entries.
func (r *TimetableRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_entries (id, school_id, class_id, subject_id, teacher_id, semester, day, timeslot_id, created_at)
VALUES (:id, :school_id, :class_id, :subject_id, :teacher_id, :semester, :day, :timeslot_id, :created_at)`

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert timetable entry: %w", err)
		}
	}
	return nil
}
