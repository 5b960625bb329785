package models

import "time"

// Class represents a group of students sharing one timetable.
type Class struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateClassRequest payload for adding a class.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}
