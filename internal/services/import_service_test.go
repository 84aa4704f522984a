package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

func newImportFixture() (*memoryRepo, ImportExportService) {
	repo := newMemoryRepo()
	return repo, NewImportExportService(repo, testLogger(), utils.NewValidator())
}

const gradeCSVHeader = "student_id,subject_id,class_id,term,academic_year,marks,max_marks\n"

func TestImportGradesFromCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("imports valid rows", func(t *testing.T) {
		repo, svc := newImportFixture()
		csvData := gradeCSVHeader +
			"student-1,math,jss2a,term1,2025-2026,42,50\n" +
			"student-2,math,jss2a,term1,2025-2026,35,50\n"

		result, err := svc.ImportGradesFromCSV(ctx, strings.NewReader(csvData), "teacher-1")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.SuccessCount != 2 || result.ErrorCount != 0 {
			t.Fatalf("expected 2 successes, got %+v", result)
		}

		record, err := repo.Grade().GetByKey(ctx, "student-1", "math", models.Term1, "2025-2026")
		if err != nil {
			t.Fatalf("expected imported record: %v", err)
		}
		if record.Percentage != 84 || record.LetterGrade != models.GradeB {
			t.Errorf("unexpected derived fields: %+v", record)
		}
		if record.TeacherID == nil || *record.TeacherID != "teacher-1" {
			t.Error("expected teacher id stamped on imported record")
		}
	})

	t.Run("bad rows are reported without sinking the upload", func(t *testing.T) {
		repo, svc := newImportFixture()
		csvData := gradeCSVHeader +
			"student-1,math,jss2a,term1,2025-2026,42,50\n" +
			",math,jss2a,term1,2025-2026,42,50\n" + // missing student
			"student-3,math,jss2a,semester9,2025-2026,42,50\n" + // bad term
			"student-4,math,jss2a,term1,2025-2026,sixty,50\n" + // non-numeric
			"student-5,math,jss2a,term1,2025-2026,60,50\n" // marks > max

		result, err := svc.ImportGradesFromCSV(ctx, strings.NewReader(csvData), "teacher-1")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.SuccessCount != 1 {
			t.Errorf("expected 1 success, got %d", result.SuccessCount)
		}
		if result.ErrorCount != 4 {
			t.Errorf("expected 4 row errors, got %d: %+v", result.ErrorCount, result.Errors)
		}

		if _, err := repo.Grade().GetByKey(ctx, "student-1", "math", models.Term1, "2025-2026"); err != nil {
			t.Errorf("valid row not imported: %v", err)
		}
	})

	t.Run("row errors carry spreadsheet row numbers", func(t *testing.T) {
		_, svc := newImportFixture()
		csvData := gradeCSVHeader +
			"student-1,math,jss2a,term1,2025-2026,42,50\n" +
			"student-2,math,jss2a,term1,2025-2026,-3,50\n"

		result, err := svc.ImportGradesFromCSV(ctx, strings.NewReader(csvData), "teacher-1")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if len(result.Errors) != 1 {
			t.Fatalf("expected 1 error, got %+v", result.Errors)
		}
		if result.Errors[0].Row != 3 {
			t.Errorf("expected row 3, got %d", result.Errors[0].Row)
		}
	})

	t.Run("missing required column", func(t *testing.T) {
		_, svc := newImportFixture()
		csvData := "student_id,subject_id,class_id,term,academic_year,marks\n" +
			"student-1,math,jss2a,term1,2025-2026,42\n"

		_, err := svc.ImportGradesFromCSV(ctx, strings.NewReader(csvData), "teacher-1")
		if !IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("sealed term rejects only its own rows", func(t *testing.T) {
		repo, svc := newImportFixture()

		sealed := &models.TermResult{
			ID:           "result-1",
			StudentID:    "student-1",
			ClassID:      "jss2a",
			Term:         models.Term1,
			AcademicYear: "2025-2026",
			Subjects:     datatypes.NewJSONType([]models.SubjectLine{}),
		}
		if err := repo.Result().Upsert(ctx, sealed); err != nil {
			t.Fatalf("seed result failed: %v", err)
		}
		if ok, _ := repo.Result().MarkPublished(ctx, "result-1", time.Now()); !ok {
			t.Fatal("MarkPublished failed")
		}

		csvData := gradeCSVHeader +
			"student-1,math,jss2a,term1,2025-2026,42,50\n" +
			"student-2,math,jss2a,term1,2025-2026,35,50\n"

		result, err := svc.ImportGradesFromCSV(ctx, strings.NewReader(csvData), "teacher-1")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.SuccessCount != 1 || result.ErrorCount != 1 {
			t.Fatalf("expected 1 success and 1 error, got %+v", result)
		}
		if _, err := repo.Grade().GetByKey(ctx, "student-2", "math", models.Term1, "2025-2026"); err != nil {
			t.Errorf("unsealed row not imported: %v", err)
		}
	})
}

func TestImportGradesFromExcel(t *testing.T) {
	ctx := context.Background()
	repo, svc := newImportFixture()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"student_id", "subject_id", "class_id", "term", "academic_year", "marks", "max_marks"},
		{"student-1", "math", "jss2a", "term1", "2025-2026", 42, 50},
		{"student-2", "english", "jss2a", "term1", "2025-2026", 47, 50},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}

	result, err := svc.ImportGradesFromExcel(ctx, bytes.NewReader(buf.Bytes()), "teacher-1")
	if err != nil {
		t.Fatalf("Excel import failed: %v", err)
	}
	if result.SuccessCount != 2 || result.ErrorCount != 0 {
		t.Fatalf("expected 2 successes, got %+v", result)
	}

	record, err := repo.Grade().GetByKey(ctx, "student-2", "english", models.Term1, "2025-2026")
	if err != nil {
		t.Fatalf("expected imported record: %v", err)
	}
	if record.LetterGrade != models.GradeA {
		t.Errorf("expected A for 94%%, got %s", record.LetterGrade)
	}
}

func TestImportGradesFromFile(t *testing.T) {
	_, svc := newImportFixture()
	_, err := svc.ImportGradesFromFile(context.Background(), nil, "grades.pdf", "teacher-1")
	if !IsValidation(err) {
		t.Fatalf("expected validation error for unsupported format, got %v", err)
	}
}

func TestExportClassGradesToCSV(t *testing.T) {
	ctx := context.Background()
	repo, svc := newImportFixture()

	grades := NewGradeService(repo, testLogger(), utils.NewValidator())
	for subject, marks := range map[string]float64{"math": 42, "english": 47} {
		if _, err := grades.Upsert(ctx, teacherUpsert("student-1", subject, marks, 50)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	data, err := svc.ExportClassGradesToCSV(ctx, "jss2a", models.Term1, "2025-2026")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "student_id" {
		t.Errorf("unexpected header: %v", rows[0])
	}
}

func TestExportClassResultsToExcel(t *testing.T) {
	ctx := context.Background()
	repo, svc := newImportFixture()

	result := &models.TermResult{
		ID:                "result-1",
		StudentID:         "student-1",
		ClassID:           "jss2a",
		Term:              models.Term1,
		AcademicYear:      "2025-2026",
		Subjects:          datatypes.NewJSONType([]models.SubjectLine{{SubjectID: "math", Marks: 42, MaxMarks: 50, Percentage: 84, LetterGrade: models.GradeB}}),
		TotalMarks:        42,
		TotalMaxMarks:     50,
		AveragePercentage: 84,
		OverallGrade:      models.GradeB,
	}
	if err := repo.Result().Upsert(ctx, result); err != nil {
		t.Fatalf("seed result failed: %v", err)
	}

	data, err := svc.ExportClassResultsToExcel(ctx, "jss2a", models.Term1, "2025-2026")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("export is not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Term Results")
	if err != nil {
		t.Fatalf("missing results sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 row, got %d", len(rows))
	}
	if rows[1][0] != "student-1" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}
