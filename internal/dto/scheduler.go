package dto

import "time"

// GenerateTimetableRequest instructs the generator to build a timetable for a class/semester.
type GenerateTimetableRequest struct {
	ClassID  string `json:"classId" validate:"required"`
	Semester int    `json:"semester" validate:"required,min=1,max=12"`
	// Priorities maps subject ids to priorities; subjects without one default to 1.
	Priorities map[string]int `json:"priorities" validate:"omitempty,dive,min=0,max=100"`
	Preview    bool           `json:"preview"`
}

// TimetableSlotProposal represents one generated lecture.
type TimetableSlotProposal struct {
	Day         string `json:"day"`
	Timeslot    string `json:"timeslot"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	TeacherID   string `json:"teacherId"`
}

// AllocationStats summarises the search behind a generated timetable.
type AllocationStats struct {
	Strategy          string   `json:"strategy"`
	Attempts          int      `json:"attempts"`
	CompletedAttempts int      `json:"completedAttempts"`
	BestAttempt       int      `json:"bestAttempt"`
	HighPriority      []string `json:"highPriority"`
	DurationMillis    int64    `json:"durationMillis"`
}

// GenerateTimetableResponse returns the generated timetable.
type GenerateTimetableResponse struct {
	ProposalID string                  `json:"proposalId,omitempty"`
	ClassID    string                  `json:"classId"`
	Semester   int                     `json:"semester"`
	Score      int                     `json:"score"`
	Committed  bool                    `json:"committed"`
	ExpiresAt  *time.Time              `json:"expiresAt,omitempty"`
	Slots      []TimetableSlotProposal `json:"slots"`
	Stats      AllocationStats         `json:"stats"`
}

// ManualTimetableEntry is one lecture supplied by a manual edit.
type ManualTimetableEntry struct {
	Day       string `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday"`
	Timeslot  string `json:"timeslot" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
}

// ReplaceTimetableRequest overwrites a class timetable with manual entries.
type ReplaceTimetableRequest struct {
	ClassID  string                 `json:"classId" validate:"required"`
	Semester int                    `json:"semester" validate:"required,min=1,max=12"`
	Entries  []ManualTimetableEntry `json:"entries" validate:"dive"`
}

// TimetableQuery identifies a class timetable.
type TimetableQuery struct {
	ClassID  string `form:"classId" json:"classId" validate:"required"`
	Semester int    `form:"semester" json:"semester" validate:"required,min=1,max=12"`
	Format   string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// BatchGenerateRequest queues one generation per class.
type BatchGenerateRequest struct {
	Semester   int            `json:"semester" validate:"required,min=1,max=12"`
	ClassIDs   []string       `json:"classIds" validate:"required,min=1,dive,required"`
	Priorities map[string]int `json:"priorities" validate:"omitempty,dive,min=0,max=100"`
}

// BatchGenerateResponse lists the queued jobs.
type BatchGenerateResponse struct {
	BatchID string   `json:"batchId"`
	JobIDs  []string `json:"jobIds"`
}
