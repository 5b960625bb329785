package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GenerationJobStatus captures background generation lifecycle states.
type GenerationJobStatus string

const (
	GenerationJobQueued    GenerationJobStatus = "QUEUED"
	GenerationJobRunning   GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed    GenerationJobStatus = "FAILED"
)

// GenerationJob is persisted metadata for one queued timetable generation.
type GenerationJob struct {
	ID           string              `db:"id" json:"id"`
	BatchID      string              `db:"batch_id" json:"batch_id"`
	SchoolID     string              `db:"school_id" json:"school_id"`
	ClassID      string              `db:"class_id" json:"class_id"`
	Semester     int                 `db:"semester" json:"semester"`
	Params       GenerationJobParams `db:"params" json:"params"`
	Status       GenerationJobStatus `db:"status" json:"status"`
	Score        *int                `db:"score" json:"score,omitempty"`
	ErrorMessage *string             `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
}

// GenerationJobParams stores request options persisted as JSONB.
type GenerationJobParams struct {
	Priorities map[string]int `json:"priorities,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p GenerationJobParams) Value() (driver.Value, error) {
	if p.Priorities == nil {
		p.Priorities = map[string]int{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal generation job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *GenerationJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = GenerationJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GenerationJobParams", value)
	}
	if len(data) == 0 {
		*p = GenerationJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal generation job params: %w", err)
	}
	return nil
}
