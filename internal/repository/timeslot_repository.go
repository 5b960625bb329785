package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// TimeslotRepository stores the lecture labels referenced by timetable entries.
type TimeslotRepository struct {
	db *sqlx.DB
}

// NewTimeslotRepository builds repository.
func NewTimeslotRepository(db *sqlx.DB) *TimeslotRepository {
	return &TimeslotRepository{db: db}
}

func (r *TimeslotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListBySchool returns stored timeslots ordered by label.
func (r *TimeslotRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Timeslot, error) {
	const query = `SELECT id, school_id, label FROM timeslots WHERE school_id = $1 ORDER BY label ASC`
	var slots []models.Timeslot
	if err := r.db.SelectContext(ctx, &slots, query, schoolID); err != nil {
		return nil, fmt.Errorf("list timeslots: %w", err)
	}
	return slots, nil
}

// Sync makes sure every label has a stored row and returns the label to id mapping.
func (r *TimeslotRepository) Sync(ctx context.Context, exec sqlx.ExtContext, schoolID string, labels []string) (map[string]string, error) {
	target := r.exec(exec)

	const selectQuery = `SELECT id, school_id, label FROM timeslots WHERE school_id = $1`
	var existing []models.Timeslot
	if err := sqlx.SelectContext(ctx, target, &existing, selectQuery, schoolID); err != nil {
		return nil, fmt.Errorf("load timeslots: %w", err)
	}

	ids := make(map[string]string, len(labels))
	for _, slot := range existing {
		ids[slot.Label] = slot.ID
	}

	const insertQuery = `INSERT INTO timeslots (id, school_id, label) VALUES ($1, $2, $3)
ON CONFLICT (school_id, label) DO UPDATE SET label = EXCLUDED.label
RETURNING id`
	for _, label := range labels {
		if _, ok := ids[label]; ok {
			continue
		}
		var id string
		if err := sqlx.GetContext(ctx, target, &id, insertQuery, uuid.NewString(), schoolID, label); err != nil {
			return nil, fmt.Errorf("insert timeslot %s: %w", label, err)
		}
		ids[label] = id
	}
	return ids, nil
}
