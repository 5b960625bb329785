package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/timeslot"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type timetableViewer interface {
	Get(ctx context.Context, schoolID, classID string, semester int) (*models.TimetableView, bool, error)
}

type csvRenderer interface {
	Render(rows []export.TimetableRow) ([]byte, error)
}

type pdfRenderer interface {
	Render(grid export.Grid) ([]byte, error)
}

// ExportResult is a rendered timetable document.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
	Format      string
}

// ExportService renders class timetables as CSV or PDF documents.
type ExportService struct {
	timetables timetableViewer
	csv        csvRenderer
	pdf        pdfRenderer
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(timetables timetableViewer, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timetables: timetables,
		csv:        csv,
		pdf:        pdf,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// ExportTimetable renders the class timetable in the requested format, CSV by default.
func (s *ExportService) ExportTimetable(ctx context.Context, schoolID string, query dto.TimetableQuery) (*ExportResult, error) {
	if query.Format == "" {
		query.Format = ExportFormatCSV
	}
	query.Format = strings.ToLower(query.Format)
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}

	view, _, err := s.timetables.Get(ctx, schoolID, query.ClassID, query.Semester)
	if err != nil {
		return nil, err
	}
	if len(view.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}

	var (
		payload     []byte
		contentType string
	)
	switch query.Format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(timetableRows(view))
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(timetableGrid(view))
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	s.logger.Sugar().Infow("timetable exported",
		"school_id", schoolID,
		"class_id", query.ClassID,
		"semester", query.Semester,
		"format", query.Format,
		"bytes", len(payload),
	)
	return &ExportResult{
		Content:     payload,
		ContentType: contentType,
		Filename:    s.buildFilename(view, query.Format),
		Format:      query.Format,
	}, nil
}

func timetableRows(view *models.TimetableView) []export.TimetableRow {
	rows := make([]export.TimetableRow, 0, len(view.Entries))
	for _, entry := range view.Entries {
		rows = append(rows, export.TimetableRow{
			Day:      entry.Day,
			Timeslot: entry.Timeslot,
			Subject:  entry.SubjectName,
			Teacher:  entry.TeacherName,
		})
	}
	return rows
}

func timetableGrid(view *models.TimetableView) export.Grid {
	grid := export.Grid{
		Title: fmt.Sprintf("Timetable %s - Semester %d", view.ClassName, view.Semester),
		Days:  view.Days,
		Cells: make(map[string]string, len(view.Grid)),
	}
	slots := view.Slots
	if len(slots) == 0 {
		for _, label := range view.Timeslots {
			slots = append(slots, models.VisualSlot{Time: label, Type: timeslot.KindLecture})
		}
	}
	for _, slot := range slots {
		grid.Slots = append(grid.Slots, export.GridSlot{Time: slot.Time, Break: slot.Type == timeslot.KindBreak})
	}
	for key, cell := range view.Grid {
		text := cell.SubjectName
		if cell.TeacherName != "" {
			text += " / " + cell.TeacherName
		}
		grid.Cells[key] = text
	}
	return grid
}

func (s *ExportService) buildFilename(view *models.TimetableView, format string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_s%d_%s.%s", sanitizeFilename(view.ClassName), view.Semester, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
