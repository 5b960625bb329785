package models

import "time"

// TimetableEntry is one lecture of a class timetable.
type TimetableEntry struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Semester   int       `db:"semester" json:"semester"`
	Day        string    `db:"day" json:"day"`
	TimeslotID string    `db:"timeslot_id" json:"timeslot_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TimetableEntryDetail joins labels and names onto an entry.
type TimetableEntryDetail struct {
	TimetableEntry
	Timeslot    string `db:"timeslot" json:"timeslot"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// TeacherBusySlot is a cell where a teacher already lectures.
type TeacherBusySlot struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	ClassID   string `db:"class_id" json:"class_id"`
	Semester  int    `db:"semester" json:"semester"`
	Day       string `db:"day" json:"day"`
	Timeslot  string `db:"timeslot" json:"timeslot"`
}

// TimetableCell is the content of one grid cell.
type TimetableCell struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
}

// TimetableView is the rendered timetable of a class and semester.
type TimetableView struct {
	ClassID   string                   `json:"class_id"`
	ClassName string                   `json:"class_name"`
	Semester  int                      `json:"semester"`
	Days      []string                 `json:"days"`
	Timeslots []string                 `json:"timeslots"`
	Slots     []VisualSlot             `json:"slots"`
	Grid      map[string]TimetableCell `json:"grid"`
	Entries   []TimetableEntryDetail   `json:"entries"`
}

// TimetableConflict describes an entry that collides with an existing lecture.
type TimetableConflict struct {
	TeacherID    string `json:"teacher_id"`
	SubjectID    string `json:"subject_id,omitempty"`
	Day          string `json:"day"`
	Timeslot     string `json:"timeslot"`
	BusyClassID  string `json:"busy_class_id"`
	BusySemester int    `json:"busy_semester"`
	Dimension    string `json:"dimension"`
}

// TimetableConflictError is returned when entries collide with committed timetables.
type TimetableConflictError struct {
	Message   string              `json:"message"`
	Conflicts []TimetableConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *TimetableConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
