package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type studentUpserter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

var importHeaderAliases = map[string]string{
	"roll":           "roll",
	"roll_no":        "roll",
	"roll number":    "roll",
	"name":           "name",
	"student name":   "name",
	"subject":        "subject",
	"preferred_room": "preferred_room",
	"preferred room": "preferred_room",
}

// ImportConfig bounds roster uploads.
type ImportConfig struct {
	MaxRows int
}

// ImportService loads a student roster from CSV or XLSX uploads.
type ImportService struct {
	students studentUpserter
	tx       txProvider
	logger   *zap.Logger
	cfg      ImportConfig
}

// NewImportService wires the roster importer.
func NewImportService(students studentUpserter, tx txProvider, logger *zap.Logger, cfg ImportConfig) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	return &ImportService{students: students, tx: tx, logger: logger, cfg: cfg}
}

// Import parses the upload and, unless dryRun is set, upserts every valid row by roll in one
// transaction. Invalid rows are reported and skipped.
func (s *ImportService) Import(ctx context.Context, filename string, src io.Reader, dryRun bool) (*dto.ImportResult, error) {
	rows, err := readRows(filename, src)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if len(rows)-1 > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file has more than %d rows", s.cfg.MaxRows))
	}

	columns, err := mapImportHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &dto.ImportResult{DryRun: dryRun, Problems: []dto.ImportProblem{}}
	valid := parseImportRows(rows[1:], columns, result)
	result.Skipped = len(result.Problems)

	if dryRun {
		result.Imported = len(valid)
		result.Rows = valid
		return result, nil
	}
	if len(valid) == 0 {
		return result, nil
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, row := range valid {
		student := &models.Student{Roll: row.Roll, Name: row.Name, Subject: row.Subject, PreferredRoom: row.PreferredRoom}
		if err = s.students.Upsert(ctx, tx, student); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to import row %d", row.Row))
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import")
		return nil, err
	}

	result.Imported = len(valid)
	s.logger.Info("student roster imported",
		zap.String("file", filename),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func readRows(filename string, src io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		reader := csv.NewReader(src)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, appErrors.Validation(err, "invalid csv file")
		}
		return rows, nil
	case ".xlsx":
		book, err := excelize.OpenReader(src)
		if err != nil {
			return nil, appErrors.Validation(err, "invalid xlsx file")
		}
		defer book.Close()
		sheet := book.GetSheetName(0)
		if sheet == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "xlsx file has no sheets")
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, appErrors.Validation(err, "failed to read xlsx rows")
		}
		return rows, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type, expected .csv or .xlsx")
	}
}

func mapImportHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if field, ok := importHeaderAliases[key]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	var missing []string
	for _, field := range []string{"roll", "name", "subject"} {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing required columns: "+strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseImportRows(rows [][]string, columns map[string]int, result *dto.ImportResult) []dto.ImportedStudent {
	valid := make([]dto.ImportedStudent, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		rowNumber := i + 2
		roll := importCell(row, columns, "roll")
		name := importCell(row, columns, "name")
		subject := importCell(row, columns, "subject")

		var problems []string
		if roll == "" {
			problems = append(problems, "roll is required")
		}
		if name == "" {
			problems = append(problems, "name is required")
		}
		if subject == "" {
			problems = append(problems, "subject is required")
		}
		if first, dup := seen[roll]; dup && roll != "" {
			problems = append(problems, fmt.Sprintf("duplicate roll, first seen on row %d", first))
		}
		if len(problems) > 0 {
			result.Problems = append(result.Problems, dto.ImportProblem{Row: rowNumber, Roll: roll, Message: strings.Join(problems, "; ")})
			continue
		}
		seen[roll] = rowNumber

		imported := dto.ImportedStudent{Row: rowNumber, Roll: roll, Name: name, Subject: subject}
		if room := importCell(row, columns, "preferred_room"); room != "" {
			imported.PreferredRoom = &room
		}
		valid = append(valid, imported)
	}
	return valid
}

func importCell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// IsImportFile reports whether the filename has a supported extension.
func IsImportFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".csv" || ext == ".xlsx"
}
