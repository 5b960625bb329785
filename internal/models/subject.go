package models

import "time"

// Subject is a course taught to one class in one semester by one teacher.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Name      string    `db:"name" json:"name"`
	Semester  int       `db:"semester" json:"semester"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail joins teacher and class names for list views.
type SubjectDetail struct {
	Subject
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	ClassID  string
	Semester int
}

// CreateSubjectRequest payload for adding a subject to a class.
type CreateSubjectRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	ClassID   string `json:"class_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Semester  int    `json:"semester" validate:"required,min=1,max=12"`
	Credits   int    `json:"credits" validate:"required,min=1,max=60"`
}
