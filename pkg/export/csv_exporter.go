package export

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// TimetableRow is one lecture in flat exports.
type TimetableRow struct {
	Day      string `csv:"day" json:"day"`
	Timeslot string `csv:"timeslot" json:"timeslot"`
	Subject  string `csv:"subject" json:"subject"`
	Teacher  string `csv:"teacher,omitempty" json:"teacher,omitempty"`
}

// CSVExporter renders timetable rows into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes with a header line.
func (e *CSVExporter) Render(rows []TimetableRow) ([]byte, error) {
	if rows == nil {
		rows = []TimetableRow{}
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return out, nil
}
