package timeslot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// LabelLayout is the format of generated slot labels.
	LabelLayout = "15:04:05"

	defaultLectureMinutes = 60
)

// Slot kinds.
const (
	KindLecture = "lecture"
	KindBreak   = "break"
)

// ErrInvalidConfig is returned for unusable daily configurations.
var ErrInvalidConfig = errors.New("invalid daily timeslot configuration")

// DailyConfig describes one school day.
type DailyConfig struct {
	StartTime      string `json:"startTime" yaml:"startTime" db:"start_time"`
	EndTime        string `json:"endTime" yaml:"endTime" db:"end_time"`
	LectureMinutes int    `json:"lectureDuration" yaml:"lectureDuration" db:"lecture_duration"`
	BreakStart     string `json:"breakStart,omitempty" yaml:"breakStart" db:"break_start_time"`
	BreakMinutes   int    `json:"breakDuration,omitempty" yaml:"breakDuration" db:"break_duration"`
}

// Slot is one entry of the generated day.
type Slot struct {
	Time string `json:"time"`
	Type string `json:"type"`
}

// Generate expands the config into ordered slots. Break slots are only emitted when
// includeBreak is set; a lecture that would run into the break is skipped.
func Generate(cfg DailyConfig, includeBreak bool) ([]Slot, error) {
	start, err := parseClock(cfg.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start time: %v", ErrInvalidConfig, err)
	}
	end, err := parseClock(cfg.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: end time: %v", ErrInvalidConfig, err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidConfig)
	}
	minutes := cfg.LectureMinutes
	if minutes <= 0 {
		minutes = defaultLectureMinutes
	}
	duration := time.Duration(minutes) * time.Minute

	var breakStart, breakEnd time.Time
	hasBreak := strings.TrimSpace(cfg.BreakStart) != ""
	if hasBreak {
		breakStart, err = parseClock(cfg.BreakStart)
		if err != nil {
			return nil, fmt.Errorf("%w: break start: %v", ErrInvalidConfig, err)
		}
		breakEnd = breakStart.Add(time.Duration(max(0, cfg.BreakMinutes)) * time.Minute)
	}

	var slots []Slot
	current := start
	for !current.Add(duration).After(end) {
		slotEnd := current.Add(duration)
		if hasBreak {
			if !current.Before(breakStart) && current.Before(breakEnd) {
				if includeBreak {
					slots = append(slots, Slot{Time: current.Format(LabelLayout), Type: KindBreak})
				}
				current = breakEnd
				continue
			}
			if current.Before(breakStart) && slotEnd.After(breakStart) {
				current = breakEnd
				continue
			}
		}
		slots = append(slots, Slot{Time: current.Format(LabelLayout), Type: KindLecture})
		current = slotEnd
	}
	return slots, nil
}

// Labels returns the lecture labels of a day, the allocator's timeslot order.
func Labels(cfg DailyConfig) ([]string, error) {
	slots, err := Generate(cfg, false)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(slots))
	for _, slot := range slots {
		labels = append(labels, slot.Time)
	}
	return labels, nil
}

// Normalize converts "H:MM", "HH:MM" or "HH:MM:SS" into the label layout.
func Normalize(raw string) (string, error) {
	t, err := parseClock(raw)
	if err != nil {
		return "", err
	}
	return t.Format(LabelLayout), nil
}

func parseClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised clock value %q", raw)
}
