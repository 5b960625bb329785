package models

// Timeslot is a stored lecture start label for a school.
type Timeslot struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Label    string `db:"label" json:"label"`
}

// VisualSlot is a lecture or break row in rendered timetables.
type VisualSlot struct {
	Time string `json:"time"`
	Type string `json:"type"`
}

// TimeslotOverview lists the lecture labels and the visual day layout of a school.
type TimeslotOverview struct {
	Labels []string     `json:"labels"`
	Slots  []VisualSlot `json:"slots"`
}
