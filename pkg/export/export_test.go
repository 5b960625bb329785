package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render([]TimetableRow{
		{Day: "Monday", Timeslot: "08:00:00", Subject: "Math", Teacher: "Ada"},
		{Day: "Monday", Timeslot: "09:00:00", Subject: "Art"},
	})
	require.NoError(t, err)
	assert.Equal(t, "day,timeslot,subject,teacher\nMonday,08:00:00,Math,Ada\nMonday,09:00:00,Art,\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	grid := Grid{
		Title: "X-A semester 1",
		Days:  []string{"Monday", "Tuesday"},
		Slots: []GridSlot{{Time: "08:00:00"}, {Time: "09:00:00", Break: true}, {Time: "09:30:00"}},
		Cells: map[string]string{CellKey("Monday", "08:00:00"): "Math"},
	}
	out, err := NewPDFExporter().Render(grid)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Grid{})
	assert.Error(t, err)
}
