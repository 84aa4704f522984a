package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/repositories"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ImportExportService handles bulk grade upload from teacher spreadsheets
// and report exports for class results.
type ImportExportService interface {
	ImportGradesFromFile(ctx context.Context, file multipart.File, filename string, teacherID string) (*ImportResult, error)
	ImportGradesFromCSV(ctx context.Context, reader io.Reader, teacherID string) (*ImportResult, error)
	ImportGradesFromExcel(ctx context.Context, reader io.Reader, teacherID string) (*ImportResult, error)

	ExportClassResultsToExcel(ctx context.Context, classID string, term models.Term, academicYear string) ([]byte, error)
	ExportClassGradesToCSV(ctx context.Context, classID string, term models.Term, academicYear string) ([]byte, error)
}

type importExportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *utils.Validator
}

func NewImportExportService(repo repositories.Repository, logger *slog.Logger, validator *utils.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== IMPORT OPERATIONS =====

// ImportRowError points at one bad spreadsheet cell. Row numbers are
// 1-based and include the header, matching what the teacher sees in
// their spreadsheet program.
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

type ImportResult struct {
	TotalRows     int                   `json:"total_rows"`
	ProcessedRows int                   `json:"processed_rows"`
	SuccessCount  int                   `json:"success_count"`
	ErrorCount    int                   `json:"error_count"`
	Errors        []ImportRowError      `json:"errors,omitempty"`
	Records       []*models.GradeRecord `json:"records,omitempty"`
}

var gradeImportColumns = []string{"student_id", "subject_id", "class_id", "term", "academic_year", "marks", "max_marks"}

func (s *importExportService) ImportGradesFromFile(ctx context.Context, file multipart.File, filename string, teacherID string) (*ImportResult, error) {
	s.logger.Info("Starting grade import", "filename", filename, "teacher_id", teacherID)

	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv":
		return s.ImportGradesFromCSV(ctx, file, teacherID)
	case ".xlsx", ".xls":
		return s.ImportGradesFromExcel(ctx, file, teacherID)
	default:
		return nil, ValidationErrors{*NewValidationError("file", "unsupported file format", ext)}
	}
}

func (s *importExportService) ImportGradesFromCSV(ctx context.Context, reader io.Reader, teacherID string) (*ImportResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return s.importGradeRows(ctx, rows, teacherID, "CSV")
}

func (s *importExportService) ImportGradesFromExcel(ctx context.Context, reader io.Reader, teacherID string) (*ImportResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ValidationErrors{*NewValidationError("file", "Excel file has no sheets", nil)}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}

	return s.importGradeRows(ctx, rows, teacherID, "Excel")
}

func (s *importExportService) importGradeRows(ctx context.Context, rows [][]string, teacherID, format string) (*ImportResult, error) {
	if len(rows) < 2 {
		return nil, ValidationErrors{*NewValidationError("file", "file must have a header row and at least one data row", len(rows))}
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range gradeImportColumns {
		if _, exists := headerMap[col]; !exists {
			return nil, ValidationErrors{*NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)}
		}
	}

	result := &ImportResult{TotalRows: len(rows) - 1}

	var records []*models.GradeRecord
	var rowErrors []ImportRowError

	for rowIndex, row := range rows[1:] {
		record, errs := s.parseGradeRow(row, headerMap, rowIndex+2, teacherID)
		if len(errs) > 0 {
			rowErrors = append(rowErrors, errs...)
			result.ErrorCount++
		} else {
			records = append(records, record)
		}
		result.ProcessedRows++
	}

	// Valid rows are written one transaction each so a sealed term result
	// rejects only its own rows, not the whole upload.
	for _, record := range records {
		err := s.repo.WithTx(ctx, func(tx repositories.Repository) error {
			return upsertGradeRecord(ctx, tx, record, false)
		})
		if err != nil {
			rowErrors = append(rowErrors, ImportRowError{
				Column:  "student_id",
				Message: importErrorMessage(err),
				Value:   record.StudentID,
			})
			result.ErrorCount++
			continue
		}
		result.Records = append(result.Records, record)
		result.SuccessCount++
	}

	result.Errors = rowErrors

	s.logger.Info(format+" grade import completed",
		"total_rows", result.TotalRows,
		"success_count", result.SuccessCount,
		"error_count", result.ErrorCount)

	return result, nil
}

func (s *importExportService) parseGradeRow(row []string, headerMap map[string]int, rowNum int, teacherID string) (*models.GradeRecord, []ImportRowError) {
	var errs []ImportRowError

	getColumn := func(name string) string {
		if index, exists := headerMap[name]; exists && index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}

	requireColumn := func(name string) string {
		value := getColumn(name)
		if value == "" {
			errs = append(errs, ImportRowError{Row: rowNum, Column: name, Message: "required field"})
		}
		return value
	}

	studentID := requireColumn("student_id")
	subjectID := requireColumn("subject_id")
	classID := requireColumn("class_id")
	termStr := requireColumn("term")
	academicYear := requireColumn("academic_year")
	marksStr := requireColumn("marks")
	maxMarksStr := requireColumn("max_marks")
	if len(errs) > 0 {
		return nil, errs
	}

	term := models.Term(strings.ToLower(termStr))
	if !term.Valid() {
		errs = append(errs, ImportRowError{
			Row: rowNum, Column: "term", Message: "must be term1, term2 or final", Value: termStr,
		})
	}

	marks, err := strconv.ParseFloat(marksStr, 64)
	if err != nil {
		errs = append(errs, ImportRowError{Row: rowNum, Column: "marks", Message: "must be a number", Value: marksStr})
	}
	maxMarks, err := strconv.ParseFloat(maxMarksStr, 64)
	if err != nil {
		errs = append(errs, ImportRowError{Row: rowNum, Column: "max_marks", Message: "must be a number", Value: maxMarksStr})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := validateMarks(marks, maxMarks); err != nil {
		errs = append(errs, ImportRowError{
			Row: rowNum, Column: "marks", Message: err.Error(), Value: marksStr,
		})
		return nil, errs
	}

	record := &models.GradeRecord{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		SubjectID:    subjectID,
		ClassID:      classID,
		TeacherID:    &teacherID,
		Term:         term,
		AcademicYear: academicYear,
		Marks:        marks,
		MaxMarks:     maxMarks,
	}
	record.Derive()
	return record, nil
}

func importErrorMessage(err error) string {
	if errors.Is(err, ErrResultPublished) {
		return "term result already published; use the single-record override to correct"
	}
	return err.Error()
}

// ===== EXPORT OPERATIONS =====

func (s *importExportService) ExportClassResultsToExcel(ctx context.Context, classID string, term models.Term, academicYear string) ([]byte, error) {
	results, err := s.repo.Result().ListForClass(ctx, classID, term, academicYear)
	if err != nil {
		return nil, storageErr("list class term results", err)
	}

	f := excelize.NewFile()
	sheetName := "Term Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Student ID", "Term", "Academic Year", "Subjects", "Total Marks",
		"Total Max Marks", "Average %", "Overall Grade", "Published", "Published At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, result := range results {
		publishedAt := ""
		if result.PublishedAt != nil {
			publishedAt = result.PublishedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			result.StudentID,
			string(result.Term),
			result.AcademicYear,
			len(result.SubjectLines()),
			result.TotalMarks,
			result.TotalMaxMarks,
			result.AveragePercentage,
			string(result.OverallGrade),
			result.IsPublished,
			publishedAt,
		}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *importExportService) ExportClassGradesToCSV(ctx context.Context, classID string, term models.Term, academicYear string) ([]byte, error) {
	records, err := s.repo.Grade().ListForClassTerm(ctx, classID, term, academicYear)
	if err != nil {
		return nil, storageErr("list class grades", err)
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	headers := []string{
		"student_id", "subject_id", "class_id", "term", "academic_year",
		"marks", "max_marks", "percentage", "letter_grade",
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		row := []string{
			record.StudentID,
			record.SubjectID,
			record.ClassID,
			string(record.Term),
			record.AcademicYear,
			strconv.FormatFloat(record.Marks, 'f', -1, 64),
			strconv.FormatFloat(record.MaxMarks, 'f', -1, 64),
			strconv.FormatFloat(record.Percentage, 'f', 2, 64),
			string(record.LetterGrade),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return []byte(buf.String()), nil
}
