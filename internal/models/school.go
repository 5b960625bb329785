package models

import "time"

// School is the tenant that owns teachers, classes, subjects and timetables.
type School struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Username        string    `db:"username" json:"username"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	StartTime       *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime         *string   `db:"end_time" json:"end_time,omitempty"`
	LectureDuration int       `db:"lecture_duration" json:"lecture_duration"`
	BreakStartTime  *string   `db:"break_start_time" json:"break_start_time,omitempty"`
	BreakDuration   int       `db:"break_duration" json:"break_duration"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// HasDailyConfig reports whether the school configured its day boundaries.
func (s School) HasDailyConfig() bool {
	return s.StartTime != nil && *s.StartTime != "" && s.EndTime != nil && *s.EndTime != ""
}
