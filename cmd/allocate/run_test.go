package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/pkg/allocator"
)

const sampleInput = `
days: [Monday, Tuesday]
timeslots: ["08:00", "09:00", "10:00"]
subjects:
  - name: Math
    credits: 3
    priority: 2
  - name: Art
    credits: 2
invalidSlots:
  Art:
    - {day: Monday, timeslot: "08:00"}
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunPrintsTable(t *testing.T) {
	path := writeInput(t, sampleInput)

	out, err := execute(t, "run", "-f", path, "--seed", "7", "--attempts", "50")
	require.NoError(t, err)

	assert.Contains(t, out, "Time")
	assert.Contains(t, out, "Monday")
	assert.Contains(t, out, "08:00:00")
	assert.Contains(t, out, "score:")
	grid := strings.SplitN(out, "\n\n", 2)[0]
	assert.Equal(t, 3, strings.Count(grid, "Math"))
	assert.Equal(t, 2, strings.Count(grid, "Art"))
}

func TestRunTableKeepsInputTimeslotOrder(t *testing.T) {
	path := writeInput(t, `
days: [Monday]
timeslots: ["10:00", "08:00", "09:00"]
subjects:
  - name: Math
    credits: 3
`)

	out, err := execute(t, "run", "-f", path, "--seed", "7", "--attempts", "20")
	require.NoError(t, err)

	lines := strings.Split(strings.SplitN(out, "\n\n", 2)[0], "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "10:00:00"))
	assert.True(t, strings.HasPrefix(lines[2], "08:00:00"))
	assert.True(t, strings.HasPrefix(lines[3], "09:00:00"))
}

func TestRunAcceptsPopulationSize(t *testing.T) {
	path := writeInput(t, sampleInput)

	out, err := execute(t, "run", "-f", path, "--seed", "7", "--population-size", "30", "--format", "json")
	require.NoError(t, err)

	var result allocator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 300, result.Attempts)
	assert.Len(t, result.Schedule, 5)

	_, err = execute(t, "run", "-f", path, "--population-size", "many")
	assert.Error(t, err)
}

func TestRunJSONHonoursInvalidSlots(t *testing.T) {
	path := writeInput(t, sampleInput)

	out, err := execute(t, "run", "-f", path, "--seed", "7", "--attempts", "50", "--format", "json")
	require.NoError(t, err)

	var result allocator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Schedule, 5)
	assert.Equal(t, map[string]int{"Math": 3, "Art": 2}, result.Schedule.CountBySubject())
	for _, p := range result.Schedule {
		if p.Subject == "Art" {
			assert.False(t, p.Day == "Monday" && p.Timeslot == "08:00:00")
		}
	}
}

func TestRunCSV(t *testing.T) {
	path := writeInput(t, sampleInput)

	out, err := execute(t, "run", "-f", path, "--seed", "3", "--attempts", "50", "--format", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "day,timeslot,subject,teacher", lines[0])
}

func TestRunFromDailyConfig(t *testing.T) {
	path := writeInput(t, `
days: [Monday]
daily:
  startTime: "08:00"
  endTime: "11:00"
  lectureDuration: 60
  breakStart: "09:00"
  breakDuration: 30
subjects:
  - name: Math
    credits: 2
`)

	out, err := execute(t, "run", "-f", path, "--format", "json", "--attempts", "20")
	require.NoError(t, err)

	var result allocator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Schedule, 2)
	for _, p := range result.Schedule {
		assert.Contains(t, []string{"08:00:00", "09:30:00"}, p.Timeslot)
	}
}

func TestRunFailsWhenOverCapacity(t *testing.T) {
	path := writeInput(t, `
days: [Monday]
timeslots: ["08:00"]
subjects:
  - name: Math
    credits: 2
`)

	_, err := execute(t, "run", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only has 1 cells")
}

func TestRunFailsWhenNoScheduleFits(t *testing.T) {
	path := writeInput(t, `
days: [Monday]
timeslots: ["08:00", "09:00"]
subjects:
  - name: Math
    credits: 1
invalidSlots:
  Math:
    - {day: Monday, timeslot: "08:00"}
    - {day: Monday, timeslot: "09:00"}
`)

	_, err := execute(t, "run", "-f", path, "--attempts", "5")
	require.ErrorIs(t, err, allocator.ErrAllocationFailed)
}

func TestRunRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"no subjects":       "timeslots: [\"08:00\"]\nsubjects: []\n",
		"no timeslots":      "subjects:\n  - name: Math\n    credits: 1\n",
		"zero credits":      "timeslots: [\"08:00\"]\nsubjects:\n  - name: Math\n    credits: 0\n",
		"unknown invalid":   "timeslots: [\"08:00\"]\nsubjects:\n  - name: Math\n    credits: 1\ninvalidSlots:\n  Art: []\n",
		"duplicate subject": "timeslots: [\"08:00\", \"09:00\"]\nsubjects:\n  - name: Math\n    credits: 1\n  - name: Math\n    credits: 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, "run", "-f", writeInput(t, content))
			assert.Error(t, err)
		})
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "run", "-f", writeInput(t, sampleInput), "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}
