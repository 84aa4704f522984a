package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/utils"
	"gorm.io/datatypes"
)

func newGradeFixture() (*memoryRepo, GradeService) {
	repo := newMemoryRepo()
	return repo, NewGradeService(repo, testLogger(), utils.NewValidator())
}

func teacherUpsert(studentID, subjectID string, marks, maxMarks float64) *UpsertGradeRequest {
	teacherID := "teacher-1"
	return &UpsertGradeRequest{
		StudentID:    studentID,
		SubjectID:    subjectID,
		ClassID:      "jss2a",
		TeacherID:    &teacherID,
		Term:         models.Term1,
		AcademicYear: "2025-2026",
		Marks:        marks,
		MaxMarks:     maxMarks,
	}
}

func TestGradeUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("derives percentage and letter grade", func(t *testing.T) {
		_, svc := newGradeFixture()

		record, err := svc.Upsert(ctx, teacherUpsert("student-1", "math", 42, 50))
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if record.Percentage != 84 {
			t.Errorf("expected 84%%, got %v", record.Percentage)
		}
		if record.LetterGrade != models.GradeB {
			t.Errorf("expected B, got %s", record.LetterGrade)
		}
	})

	t.Run("later write replaces, never duplicates", func(t *testing.T) {
		repo, svc := newGradeFixture()

		first, err := svc.Upsert(ctx, teacherUpsert("student-1", "math", 30, 50))
		if err != nil {
			t.Fatalf("first Upsert failed: %v", err)
		}
		second, err := svc.Upsert(ctx, teacherUpsert("student-1", "math", 45, 50))
		if err != nil {
			t.Fatalf("second Upsert failed: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("expected stable record id, got %s then %s", first.ID, second.ID)
		}

		records, _ := repo.Grade().ListForStudentTerm(ctx, "student-1", models.Term1, "2025-2026")
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if records[0].Marks != 45 {
			t.Errorf("expected marks 45, got %v", records[0].Marks)
		}
	})

	t.Run("invalid marks", func(t *testing.T) {
		_, svc := newGradeFixture()

		cases := []struct {
			name     string
			marks    float64
			maxMarks float64
		}{
			{"marks above max", 55, 50},
			{"negative marks", -1, 50},
			{"zero max marks", 10, 0},
			{"negative max marks", 10, -50},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Upsert(ctx, teacherUpsert("student-1", "math", tc.marks, tc.maxMarks))
				if !errors.Is(err, ErrInvalidMarks) {
					t.Fatalf("expected ErrInvalidMarks, got %v", err)
				}
			})
		}
	})

	t.Run("rejects malformed keys", func(t *testing.T) {
		_, svc := newGradeFixture()

		req := teacherUpsert("student-1", "math", 40, 50)
		req.Term = "semester9"
		if _, err := svc.Upsert(ctx, req); !IsValidation(err) {
			t.Errorf("expected validation error for bad term, got %v", err)
		}

		req = teacherUpsert("student-1", "math", 40, 50)
		req.AcademicYear = "2025-2027"
		if _, err := svc.Upsert(ctx, req); !IsValidation(err) {
			t.Errorf("expected validation error for bad academic year, got %v", err)
		}
	})
}

func TestGradeSealGuard(t *testing.T) {
	ctx := context.Background()
	repo, svc := newGradeFixture()

	if _, err := svc.Upsert(ctx, teacherUpsert("student-1", "math", 40, 50)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Publish the owning term result, sealing the term.
	now := time.Now()
	result := &models.TermResult{
		ID:           "result-1",
		StudentID:    "student-1",
		ClassID:      "jss2a",
		Term:         models.Term1,
		AcademicYear: "2025-2026",
		Subjects:     datatypes.NewJSONType([]models.SubjectLine{}),
	}
	if err := repo.Result().Upsert(ctx, result); err != nil {
		t.Fatalf("result Upsert failed: %v", err)
	}
	if ok, _ := repo.Result().MarkPublished(ctx, "result-1", now); !ok {
		t.Fatal("MarkPublished failed")
	}

	t.Run("write into sealed term fails", func(t *testing.T) {
		_, err := svc.Upsert(ctx, teacherUpsert("student-1", "math", 48, 50))
		if !errors.Is(err, ErrResultPublished) {
			t.Fatalf("expected ErrResultPublished, got %v", err)
		}

		record, _ := repo.Grade().GetByKey(ctx, "student-1", "math", models.Term1, "2025-2026")
		if record.Marks != 40 {
			t.Errorf("sealed grade drifted to %v", record.Marks)
		}
	})

	t.Run("override corrects a sealed grade", func(t *testing.T) {
		req := teacherUpsert("student-1", "math", 48, 50)
		req.Override = true
		record, err := svc.Upsert(ctx, req)
		if err != nil {
			t.Fatalf("override Upsert failed: %v", err)
		}
		if record.Marks != 48 {
			t.Errorf("expected marks 48, got %v", record.Marks)
		}
	})

	t.Run("other terms stay writable", func(t *testing.T) {
		req := teacherUpsert("student-1", "math", 35, 50)
		req.Term = models.Term2
		if _, err := svc.Upsert(ctx, req); err != nil {
			t.Fatalf("Upsert into open term failed: %v", err)
		}
	})
}

func TestGradeReads(t *testing.T) {
	ctx := context.Background()
	_, svc := newGradeFixture()

	if _, err := svc.GetGrade(ctx, "student-1", "math", models.Term1, "2025-2026"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, subject := range []string{"math", "english", "science"} {
		if _, err := svc.Upsert(ctx, teacherUpsert("student-1", subject, 40, 50)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	records, err := svc.ListStudentGrades(ctx, "student-1", models.Term1, "2025-2026")
	if err != nil {
		t.Fatalf("ListStudentGrades failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}

	records, err = svc.ListClassGrades(ctx, "jss2a", models.Term1, "2025-2026")
	if err != nil {
		t.Fatalf("ListClassGrades failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 class records, got %d", len(records))
	}
}
