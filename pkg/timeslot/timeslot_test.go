package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithBreak(t *testing.T) {
	cfg := DailyConfig{StartTime: "08:00", EndTime: "13:00", LectureMinutes: 60, BreakStart: "10:00", BreakMinutes: 30}

	slots, err := Generate(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, []Slot{
		{Time: "08:00:00", Type: KindLecture},
		{Time: "09:00:00", Type: KindLecture},
		{Time: "10:00:00", Type: KindBreak},
		{Time: "10:30:00", Type: KindLecture},
		{Time: "11:30:00", Type: KindLecture},
	}, slots)

	labels, err := Labels(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00:00", "09:00:00", "10:30:00", "11:30:00"}, labels)
}

func TestGenerateSkipsLectureStraddlingBreak(t *testing.T) {
	cfg := DailyConfig{StartTime: "08:00:00", EndTime: "12:00:00", LectureMinutes: 45, BreakStart: "09:00", BreakMinutes: 15}

	labels, err := Labels(cfg)
	require.NoError(t, err)
	// 08:45 would run into the break so the day resumes at 09:15.
	assert.Equal(t, []string{"08:00:00", "09:15:00", "10:00:00", "10:45:00"}, labels)
}

func TestGenerateDefaultsLectureDuration(t *testing.T) {
	labels, err := Labels(DailyConfig{StartTime: "9:00", EndTime: "11:30"})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00:00", "10:00:00"}, labels)
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	_, err := Generate(DailyConfig{StartTime: "10:00", EndTime: "09:00"}, false)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Generate(DailyConfig{StartTime: "morning", EndTime: "09:00"}, false)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Generate(DailyConfig{StartTime: "08:00", EndTime: "09:00", BreakStart: "x"}, false)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("8:05")
	require.NoError(t, err)
	assert.Equal(t, "08:05:00", got)

	_, err = Normalize("25:00")
	assert.Error(t, err)
}
