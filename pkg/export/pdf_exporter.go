package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// GridSlot is one row of the rendered week.
type GridSlot struct {
	Time  string
	Break bool
}

// Grid is a week laid out as timeslot rows by day columns.
type Grid struct {
	Title string
	Days  []string
	Slots []GridSlot
	// Cells is keyed by CellKey(day, time).
	Cells map[string]string
}

// CellKey builds the lookup key used by Grid.Cells.
func CellKey(day, time string) string {
	return day + "_" + time
}

// PDFExporter renders timetable grids into a landscape PDF table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and one row per slot.
func (e *PDFExporter) Render(grid Grid) ([]byte, error) {
	if len(grid.Days) == 0 {
		return nil, fmt.Errorf("pdf requires at least one day")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(grid.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	const timeWidth = 25.0
	dayWidth := (277.0 - timeWidth) / float64(len(grid.Days))

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(timeWidth, 8, "Time", "1", 0, "C", false, 0, "")
	for _, day := range grid.Days {
		pdf.CellFormat(dayWidth, 8, day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, slot := range grid.Slots {
		pdf.CellFormat(timeWidth, 7, slot.Time, "1", 0, "C", false, 0, "")
		if slot.Break {
			pdf.SetFillColor(230, 230, 230)
			pdf.CellFormat(dayWidth*float64(len(grid.Days)), 7, "BREAK", "1", 0, "C", true, 0, "")
			pdf.Ln(-1)
			continue
		}
		for _, day := range grid.Days {
			pdf.CellFormat(dayWidth, 7, grid.Cells[CellKey(day, slot.Time)], "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
