package services

import (
	"context"
	"log/slog"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/repositories"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/google/uuid"
)

// GradeService owns grade records: one scored outcome per (student,
// subject, term, academic year), written by teachers or by the scoring
// path. Later writes upsert on the key, never duplicate.
type GradeService interface {
	// Upsert validates marks and writes the record. Writing into a term
	// whose result is already published fails with ErrResultPublished
	// unless Override is set (admin correction path).
	Upsert(ctx context.Context, req *UpsertGradeRequest) (*models.GradeRecord, error)
	GetGrade(ctx context.Context, studentID, subjectID string, term models.Term, academicYear string) (*models.GradeRecord, error)
	ListStudentGrades(ctx context.Context, studentID string, term models.Term, academicYear string) ([]*models.GradeRecord, error)
	ListClassGrades(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.GradeRecord, error)
}

type UpsertGradeRequest struct {
	StudentID    string      `json:"student_id" validate:"required"`
	SubjectID    string      `json:"subject_id" validate:"required"`
	ClassID      string      `json:"class_id" validate:"required"`
	TeacherID    *string     `json:"teacher_id"`
	Term         models.Term `json:"term" validate:"required,term"`
	AcademicYear string      `json:"academic_year" validate:"required,academic_year"`
	Marks        float64     `json:"marks"`
	MaxMarks     float64     `json:"max_marks"`
	Override     bool        `json:"override"`
}

type gradeService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *utils.Validator
}

func NewGradeService(repo repositories.Repository, logger *slog.Logger, validator *utils.Validator) GradeService {
	return &gradeService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *gradeService) Upsert(ctx context.Context, req *UpsertGradeRequest) (*models.GradeRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := validateMarks(req.Marks, req.MaxMarks); err != nil {
		return nil, err
	}

	record := &models.GradeRecord{
		ID:           uuid.NewString(),
		StudentID:    req.StudentID,
		SubjectID:    req.SubjectID,
		ClassID:      req.ClassID,
		TeacherID:    req.TeacherID,
		Term:         req.Term,
		AcademicYear: req.AcademicYear,
		Marks:        req.Marks,
		MaxMarks:     req.MaxMarks,
	}
	record.Derive()

	err := s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		return upsertGradeRecord(ctx, tx, record, req.Override)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Grade record upserted",
		"student_id", record.StudentID,
		"subject_id", record.SubjectID,
		"term", record.Term,
		"academic_year", record.AcademicYear,
		"letter_grade", record.LetterGrade,
		"override", req.Override)
	return record, nil
}

func (s *gradeService) GetGrade(ctx context.Context, studentID, subjectID string, term models.Term, academicYear string) (*models.GradeRecord, error) {
	record, err := s.repo.Grade().GetByKey(ctx, studentID, subjectID, term, academicYear)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get grade", err)
	}
	return record, nil
}

func (s *gradeService) ListStudentGrades(ctx context.Context, studentID string, term models.Term, academicYear string) ([]*models.GradeRecord, error) {
	records, err := s.repo.Grade().ListForStudentTerm(ctx, studentID, term, academicYear)
	if err != nil {
		return nil, storageErr("list student grades", err)
	}
	return records, nil
}

func (s *gradeService) ListClassGrades(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.GradeRecord, error) {
	records, err := s.repo.Grade().ListForClassTerm(ctx, classID, term, academicYear)
	if err != nil {
		return nil, storageErr("list class grades", err)
	}
	return records, nil
}

// validateMarks rejects negative values and marks beyond the maximum. A
// zero maximum is invalid too since every percentage divides by it.
func validateMarks(marks, maxMarks float64) error {
	if marks < 0 || maxMarks <= 0 || marks > maxMarks {
		return ErrInvalidMarks
	}
	return nil
}

// upsertGradeRecord writes a grade after checking the seal: a grade whose
// owning term result is already published cannot drift underneath it, so
// the write fails with ErrResultPublished unless override is set.
func upsertGradeRecord(ctx context.Context, tx repositories.Repository, record *models.GradeRecord, override bool) error {
	if !override {
		result, err := tx.Result().GetByKey(ctx, record.StudentID, record.Term, record.AcademicYear)
		if err != nil && !repositories.IsNotFoundError(err) {
			return storageErr("check term result", err)
		}
		if result != nil && result.IsPublished {
			return ErrResultPublished
		}
	}
	if err := tx.Grade().Upsert(ctx, record); err != nil {
		return storageErr("upsert grade", err)
	}
	return nil
}

// gradeFromOutcome builds the system-scored grade record for a terminal
// session. TeacherID stays nil to mark the scoring path as the author.
func gradeFromOutcome(exam *models.ExamDefinition, outcome *models.ScoredOutcome) *models.GradeRecord {
	record := &models.GradeRecord{
		ID:           uuid.NewString(),
		StudentID:    outcome.StudentID,
		SubjectID:    exam.SubjectID,
		ClassID:      exam.ClassID,
		Term:         exam.Term,
		AcademicYear: exam.AcademicYear,
		Marks:        float64(outcome.RawCorrectCount),
		MaxMarks:     float64(outcome.TotalQuestions),
	}
	record.Derive()
	return record
}
