package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/brightclass/cbt-service/internal/cache"
	"github.com/brightclass/cbt-service/internal/events"
	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/repositories"
	"github.com/brightclass/cbt-service/internal/roster"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ResultService collapses a student's grade records for one term into a
// single publishable term result. Aggregation is idempotent and re-runnable
// any time before publication; publication is a deliberate one-way gate so
// results visible to students and parents stay stable.
type ResultService interface {
	// Aggregate recomputes the term result from the current grade records.
	// Fails with ErrNoSubjects when no records exist and with
	// ErrAlreadyPublished when the result is sealed. With req.Publish set
	// the result is published in the same transaction.
	Aggregate(ctx context.Context, req *AggregateRequest) (*models.TermResult, error)
	// Publish seals the result. A second call fails with
	// ErrAlreadyPublished rather than reporting silent success, so a
	// caller holding a stale view learns about it.
	Publish(ctx context.Context, termResultID string) (*models.TermResult, error)
	// Unpublish reopens a sealed result for correction. Grades edited
	// while sealed do not flow in automatically; a fresh Aggregate is
	// required.
	Unpublish(ctx context.Context, termResultID string) (*models.TermResult, error)
	GetResult(ctx context.Context, termResultID string) (*models.TermResult, error)
	GetStudentResult(ctx context.Context, studentID string, term models.Term, academicYear string) (*models.TermResult, error)
	ListStudentResults(ctx context.Context, studentID string, publishedOnly bool) ([]*models.TermResult, error)
	ListClassResults(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.TermResult, error)
}

type AggregateRequest struct {
	StudentID    string      `json:"student_id" validate:"required"`
	ClassID      string      `json:"class_id"`
	Term         models.Term `json:"term" validate:"required,term"`
	AcademicYear string      `json:"academic_year" validate:"required,academic_year"`
	Publish      bool        `json:"publish"`
}

const classTermResultsKeyFmt = "cbt:termresults:class:%s:%s:%s"

type resultService struct {
	repo      repositories.Repository
	roster    roster.Provider
	publisher events.EventPublisher
	cache     cache.CacheService
	logger    *slog.Logger
	validator *utils.Validator
	now       func() time.Time
}

func NewResultService(
	repo repositories.Repository,
	rosterProvider roster.Provider,
	publisher events.EventPublisher,
	cacheSvc cache.CacheService,
	logger *slog.Logger,
	validator *utils.Validator,
) ResultService {
	return &resultService{
		repo:      repo,
		roster:    rosterProvider,
		publisher: publisher,
		cache:     cacheSvc,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

func (s *resultService) Aggregate(ctx context.Context, req *AggregateRequest) (*models.TermResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	classID := req.ClassID
	if classID == "" {
		student, err := s.roster.GetStudent(ctx, req.StudentID)
		if err != nil {
			if errors.Is(err, roster.ErrStudentNotFound) {
				return nil, ErrNotFound
			}
			return nil, storageErr("roster lookup", err)
		}
		classID = student.ClassID
	}

	var result *models.TermResult
	var published bool

	// One transaction so the grade snapshot, the upsert and the optional
	// publish are consistent with concurrent grade edits.
	err := s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		records, err := tx.Grade().ListForStudentTerm(ctx, req.StudentID, req.Term, req.AcademicYear)
		if err != nil {
			return storageErr("list grade records", err)
		}
		if len(records) == 0 {
			return ErrNoSubjects
		}

		existing, err := tx.Result().GetByKey(ctx, req.StudentID, req.Term, req.AcademicYear)
		if err != nil && !repositories.IsNotFoundError(err) {
			return storageErr("get term result", err)
		}
		if existing != nil && existing.IsPublished {
			return ErrAlreadyPublished
		}

		result = buildTermResult(req.StudentID, classID, req.Term, req.AcademicYear, records)
		if existing != nil {
			result.ID = existing.ID
			result.CreatedAt = existing.CreatedAt
		}
		if err := tx.Result().Upsert(ctx, result); err != nil {
			return storageErr("upsert term result", err)
		}

		// When a concurrent aggregate inserted first, the conflict upsert
		// updated that row but kept its id. Re-read so the id we publish
		// and return is the stored one.
		stored, err := tx.Result().GetByKey(ctx, req.StudentID, req.Term, req.AcademicYear)
		if err != nil {
			return storageErr("get term result", err)
		}
		result.ID = stored.ID
		result.CreatedAt = stored.CreatedAt

		if req.Publish {
			now := s.now()
			ok, err := tx.Result().MarkPublished(ctx, result.ID, now)
			if err != nil {
				return storageErr("publish term result", err)
			}
			if !ok {
				return ErrAlreadyPublished
			}
			result.IsPublished = true
			result.PublishedAt = &now
			published = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateClassResults(ctx, result)
	if published {
		s.emitPublished(ctx, result, events.EventResultPublished)
	}

	s.logger.Info("Term result aggregated",
		"term_result_id", result.ID,
		"student_id", result.StudentID,
		"term", result.Term,
		"academic_year", result.AcademicYear,
		"average_percentage", result.AveragePercentage,
		"overall_grade", result.OverallGrade,
		"published", published)
	return result, nil
}

func (s *resultService) Publish(ctx context.Context, termResultID string) (*models.TermResult, error) {
	now := s.now()
	ok, err := s.repo.Result().MarkPublished(ctx, termResultID, now)
	if err != nil {
		return nil, storageErr("publish term result", err)
	}
	if !ok {
		// Disambiguate: the conditional update also misses when the row
		// does not exist.
		if _, err := s.getResult(ctx, termResultID); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyPublished
	}

	result, err := s.getResult(ctx, termResultID)
	if err != nil {
		return nil, err
	}

	s.invalidateClassResults(ctx, result)
	s.emitPublished(ctx, result, events.EventResultPublished)

	s.logger.Info("Term result published",
		"term_result_id", result.ID,
		"student_id", result.StudentID,
		"term", result.Term)
	return result, nil
}

func (s *resultService) Unpublish(ctx context.Context, termResultID string) (*models.TermResult, error) {
	ok, err := s.repo.Result().MarkUnpublished(ctx, termResultID)
	if err != nil {
		return nil, storageErr("unpublish term result", err)
	}
	if !ok {
		// Already unpublished. Nothing to reopen; report the current row.
		return s.getResult(ctx, termResultID)
	}

	result, err := s.getResult(ctx, termResultID)
	if err != nil {
		return nil, err
	}

	s.invalidateClassResults(ctx, result)
	s.emitPublished(ctx, result, events.EventResultUnpublished)

	s.logger.Info("Term result unpublished",
		"term_result_id", result.ID,
		"student_id", result.StudentID,
		"term", result.Term)
	return result, nil
}

// ===== READS =====

func (s *resultService) GetResult(ctx context.Context, termResultID string) (*models.TermResult, error) {
	return s.getResult(ctx, termResultID)
}

func (s *resultService) GetStudentResult(ctx context.Context, studentID string, term models.Term, academicYear string) (*models.TermResult, error) {
	result, err := s.repo.Result().GetByKey(ctx, studentID, term, academicYear)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, storageErr("get term result", err)
	}
	return result, nil
}

func (s *resultService) ListStudentResults(ctx context.Context, studentID string, publishedOnly bool) ([]*models.TermResult, error) {
	results, err := s.repo.Result().ListForStudent(ctx, studentID)
	if err != nil {
		return nil, storageErr("list term results", err)
	}
	if !publishedOnly {
		return results, nil
	}
	published := make([]*models.TermResult, 0, len(results))
	for _, r := range results {
		if r.IsPublished {
			published = append(published, r)
		}
	}
	return published, nil
}

func (s *resultService) ListClassResults(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.TermResult, error) {
	cacheKey := fmt.Sprintf(classTermResultsKeyFmt, classID, term, academicYear)

	var cached []*models.TermResult
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	}

	results, err := s.repo.Result().ListForClass(ctx, classID, term, academicYear)
	if err != nil {
		return nil, storageErr("list class term results", err)
	}

	if err := s.cache.Set(ctx, cacheKey, results, classResultsTTL); err != nil {
		s.logger.Warn("failed to cache class term results", "class_id", classID, "error", err)
	}
	return results, nil
}

// ===== HELPERS =====

func (s *resultService) getResult(ctx context.Context, termResultID string) (*models.TermResult, error) {
	result, err := s.repo.Result().GetByID(ctx, termResultID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, storageErr("get term result", err)
	}
	return result, nil
}

func (s *resultService) invalidateClassResults(ctx context.Context, result *models.TermResult) {
	pattern := fmt.Sprintf(classTermResultsKeyFmt, result.ClassID, "*", "*")
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate class term result cache",
			"class_id", result.ClassID, "error", err)
	}
}

func (s *resultService) emitPublished(ctx context.Context, result *models.TermResult, eventType events.EventType) {
	event := events.NewNotificationEvent(eventType, events.ResultPublishedEvent{
		TermResultID:      result.ID,
		StudentID:         result.StudentID,
		ClassID:           result.ClassID,
		Term:              result.Term,
		AcademicYear:      result.AcademicYear,
		AveragePercentage: result.AveragePercentage,
		OverallGrade:      result.OverallGrade,
		PublishedAt:       s.now(),
	})
	if err := s.publisher.PublishNotificationEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish term result event",
			"term_result_id", result.ID, "event_type", eventType, "error", err)
	}
}

// buildTermResult computes the snapshot from the grade records. Subject
// lines keep a stable order so repeated aggregation of unchanged grades
// produces an identical snapshot.
func buildTermResult(studentID, classID string, term models.Term, academicYear string, records []*models.GradeRecord) *models.TermResult {
	sorted := make([]*models.GradeRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SubjectID < sorted[j].SubjectID
	})

	lines := make([]models.SubjectLine, 0, len(sorted))
	totalMarks, totalMax := 0.0, 0.0
	for _, r := range sorted {
		lines = append(lines, models.SubjectLine{
			SubjectID:   r.SubjectID,
			Marks:       r.Marks,
			MaxMarks:    r.MaxMarks,
			Percentage:  r.Percentage,
			LetterGrade: r.LetterGrade,
		})
		totalMarks += r.Marks
		totalMax += r.MaxMarks
	}

	average := 0.0
	if totalMax > 0 {
		average = models.RoundPercentage(totalMarks / totalMax * 100)
	}

	return &models.TermResult{
		ID:                uuid.NewString(),
		StudentID:         studentID,
		ClassID:           classID,
		Term:              term,
		AcademicYear:      academicYear,
		Subjects:          datatypes.NewJSONType(lines),
		TotalMarks:        totalMarks,
		TotalMaxMarks:     totalMax,
		AveragePercentage: average,
		OverallGrade:      models.LetterGradeFor(average),
	}
}
