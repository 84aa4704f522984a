package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightclass/cbt-service/internal/cache"
	"github.com/brightclass/cbt-service/internal/events"
	"github.com/brightclass/cbt-service/internal/exambank"
	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/repositories"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/google/uuid"
)

// SessionService enforces the exam-taking protocol: one active session per
// (student, exam), a server-authoritative deadline fixed at creation, and
// an exactly-once terminal transition. Clients are untrusted input relays;
// any client-side autosave is advisory and reconciles against RecordAnswer.
type SessionService interface {
	Start(ctx context.Context, examID, studentID string) (*StartSessionResponse, error)
	RecordAnswer(ctx context.Context, sessionID string, req *RecordAnswerRequest) error
	// Submit transitions the session to submitted and scores it
	// synchronously. A repeated call returns the existing outcome
	// together with ErrAlreadySubmitted so retrying clients can treat
	// the conflict as success.
	Submit(ctx context.Context, sessionID string) (*models.ScoredOutcome, error)
	GetSession(ctx context.Context, sessionID string) (*models.CBTSession, error)
	GetStudentResult(ctx context.Context, examID, studentID string) (*models.ScoredOutcome, error)
	GetClassResults(ctx context.Context, examID string) (*ClassResultsResponse, error)
	// ExpireOverdue sweeps active sessions past their deadline into the
	// expired state, scoring each from whatever answers were recorded.
	// The same transition happens lazily on any read of an overdue
	// session, so sweep and lazy check converge on one terminal state.
	ExpireOverdue(ctx context.Context) (int, error)
}

type StartSessionResponse struct {
	Session   *models.CBTSession    `json:"session"`
	Questions []models.QuestionView `json:"questions"`
}

type RecordAnswerRequest struct {
	QuestionID  string `json:"question_id" validate:"required"`
	OptionIndex int    `json:"option_index" validate:"gte=0"`
}

type ClassResultsResponse struct {
	ExamID       string                  `json:"exam_id"`
	Outcomes     []*models.ScoredOutcome `json:"outcomes"`
	AverageScore float64                 `json:"average_score"`
	// Distribution buckets percentages into 10-point bands; index 9
	// covers 90-100 inclusive.
	Distribution [10]int `json:"distribution"`
}

const (
	expireSweepBatch   = 200
	classResultsTTL    = 5 * time.Minute
	classResultsKeyFmt = "cbt:results:exam:%s"
)

type sessionService struct {
	repo      repositories.Repository
	bank      exambank.Provider
	publisher events.EventPublisher
	cache     cache.CacheService
	logger    *slog.Logger
	validator *utils.Validator

	grace time.Duration
	now   func() time.Time
}

func NewSessionService(
	repo repositories.Repository,
	bank exambank.Provider,
	publisher events.EventPublisher,
	cacheSvc cache.CacheService,
	logger *slog.Logger,
	validator *utils.Validator,
	grace time.Duration,
) SessionService {
	return &sessionService{
		repo:      repo,
		bank:      bank,
		publisher: publisher,
		cache:     cacheSvc,
		logger:    logger,
		validator: validator,
		grace:     grace,
		now:       time.Now,
	}
}

// ===== CORE SESSION OPERATIONS =====

func (s *sessionService) Start(ctx context.Context, examID, studentID string) (*StartSessionResponse, error) {
	s.logger.Info("Starting CBT session", "exam_id", examID, "student_id", studentID)

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.CBTSession{
		ID:        uuid.NewString(),
		ExamID:    examID,
		StudentID: studentID,
		Status:    models.SessionActive,
		StartedAt: now,
		Deadline:  now.Add(time.Duration(exam.Duration) * time.Minute),
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		current, err := tx.Session().GetActive(ctx, examID, studentID)
		if err != nil {
			return storageErr("get active session", err)
		}
		if current != nil {
			// An over-deadline row is not observably active; close it
			// out before deciding.
			if current.PastDeadline(s.now(), s.grace) {
				if _, err := s.finalizeExpired(ctx, tx, current, exam); err != nil {
					return err
				}
			} else {
				return ErrSessionAlreadyActive
			}
		}
		if err := tx.Session().Create(ctx, session); err != nil {
			// The partial unique index catches the race where two
			// concurrent starts both saw no active row.
			if repositories.IsDuplicateError(err) {
				return ErrSessionAlreadyActive
			}
			return storageErr("create session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	questions, err := s.bank.GetQuestions(ctx, examID)
	if err != nil {
		return nil, s.mapBankError(err)
	}

	s.logger.Info("CBT session started",
		"session_id", session.ID,
		"exam_id", examID,
		"student_id", studentID,
		"deadline", session.Deadline)

	return &StartSessionResponse{Session: session, Questions: questions}, nil
}

func (s *sessionService) RecordAnswer(ctx context.Context, sessionID string, req *RecordAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		session, err := s.getSessionForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		if session.Status.IsTerminal() {
			return ErrSessionNotActive
		}

		exam, err := s.getExam(ctx, session.ExamID)
		if err != nil {
			return err
		}

		// RecordAnswer gets no grace: past the deadline the write is
		// rejected. The session is only closed out once the grace window
		// has also passed, so a submission inside the window still counts.
		if session.PastDeadline(s.now(), 0) {
			if session.PastDeadline(s.now(), s.grace) {
				if _, err := s.finalizeExpired(ctx, tx, session, exam); err != nil {
					return err
				}
			}
			return ErrSessionNotActive
		}

		questions, err := s.bank.GetQuestions(ctx, session.ExamID)
		if err != nil {
			return s.mapBankError(err)
		}
		if err := validateAnswer(questions, req); err != nil {
			return err
		}

		// Last write wins per question; the row lock serializes
		// concurrent writes to the same session.
		answers := session.AnswerMap()
		answers[req.QuestionID] = req.OptionIndex
		if err := tx.Session().UpdateAnswers(ctx, sessionID, answers); err != nil {
			return storageErr("update answers", err)
		}
		return nil
	})
}

func (s *sessionService) Submit(ctx context.Context, sessionID string) (*models.ScoredOutcome, error) {
	var outcome *models.ScoredOutcome
	var submitErr error
	var expired bool

	err := s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		session, err := s.getSessionForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		if session.Status.IsTerminal() {
			existing, err := tx.Session().GetOutcome(ctx, sessionID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrAlreadySubmitted
				}
				return storageErr("get outcome", err)
			}
			outcome = existing
			submitErr = ErrAlreadySubmitted
			return nil
		}

		exam, err := s.getExam(ctx, session.ExamID)
		if err != nil {
			return err
		}

		if session.PastDeadline(s.now(), s.grace) {
			// Too late to count as submitted, but the student still
			// gets a result from whatever was last recorded.
			scored, err := s.finalizeExpired(ctx, tx, session, exam)
			if err != nil {
				return err
			}
			outcome = scored
			submitErr = ErrDeadlineExceeded
			expired = true
			return nil
		}

		now := s.now()
		session.Status = models.SessionSubmitted
		session.SubmittedAt = &now

		key, err := s.bank.GetAnswerKey(ctx, session.ExamID)
		if err != nil {
			return s.mapBankError(err)
		}

		scored := ScoreSession(session, key, exam.PassThreshold, now)
		if err := tx.Session().Update(ctx, session); err != nil {
			return storageErr("update session", err)
		}
		if err := tx.Session().CreateOutcome(ctx, &scored); err != nil {
			return storageErr("create outcome", err)
		}
		if err := s.writeOutcomeGrade(ctx, tx, exam, &scored); err != nil {
			return err
		}
		outcome = &scored
		return nil
	})
	if err != nil {
		return nil, err
	}

	if submitErr == nil || errors.Is(submitErr, ErrDeadlineExceeded) {
		s.afterScored(ctx, outcome, expired)
	}

	if submitErr != nil {
		return outcome, submitErr
	}

	s.logger.Info("CBT session submitted",
		"session_id", sessionID,
		"percentage", outcome.Percentage,
		"passed", outcome.Passed)
	return outcome, nil
}

// ===== READS =====

func (s *sessionService) GetSession(ctx context.Context, sessionID string) (*models.CBTSession, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, storageErr("get session", err)
	}

	// Lazy expiry: an overdue session must never be read as active.
	if session.Status == models.SessionActive && session.PastDeadline(s.now(), s.grace) {
		if err := s.expireOne(ctx, session.ID); err != nil {
			return nil, err
		}
		refreshed, err := s.repo.Session().GetByID(ctx, session.ID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrSessionNotFound
			}
			return nil, storageErr("get session", err)
		}
		return refreshed, nil
	}
	return session, nil
}

func (s *sessionService) GetStudentResult(ctx context.Context, examID, studentID string) (*models.ScoredOutcome, error) {
	outcome, err := s.repo.Session().GetOutcomeForStudent(ctx, examID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get outcome", err)
	}
	return outcome, nil
}

func (s *sessionService) GetClassResults(ctx context.Context, examID string) (*ClassResultsResponse, error) {
	cacheKey := fmt.Sprintf(classResultsKeyFmt, examID)

	var cached ClassResultsResponse
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}

	outcomes, err := s.repo.Session().ListOutcomesByExam(ctx, examID)
	if err != nil {
		return nil, storageErr("list outcomes", err)
	}

	response := &ClassResultsResponse{
		ExamID:   examID,
		Outcomes: outcomes,
	}
	sum := 0.0
	for _, o := range outcomes {
		sum += o.Percentage
		bucket := int(o.Percentage / 10)
		if bucket > 9 {
			bucket = 9
		}
		response.Distribution[bucket]++
	}
	if len(outcomes) > 0 {
		response.AverageScore = models.RoundPercentage(sum / float64(len(outcomes)))
	}

	if err := s.cache.Set(ctx, cacheKey, response, classResultsTTL); err != nil {
		s.logger.Warn("failed to cache class results", "exam_id", examID, "error", err)
	}
	return response, nil
}

// ===== EXPIRY =====

func (s *sessionService) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.Session().ListOverdue(ctx, s.now().Add(-s.grace), expireSweepBatch)
	if err != nil {
		return 0, storageErr("list overdue sessions", err)
	}

	count := 0
	for _, session := range overdue {
		if err := s.expireOne(ctx, session.ID); err != nil {
			s.logger.Error("failed to expire session", "session_id", session.ID, "error", err)
			continue
		}
		count++
	}
	if count > 0 {
		s.logger.Info("expired overdue sessions", "count", count)
	}
	return count, nil
}

// expireOne re-checks state under the row lock so a concurrent Submit or
// sweep cannot double-finalize.
func (s *sessionService) expireOne(ctx context.Context, sessionID string) error {
	var outcome *models.ScoredOutcome
	err := s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		session, err := s.getSessionForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status.IsTerminal() || !session.PastDeadline(s.now(), s.grace) {
			return nil
		}
		exam, err := s.getExam(ctx, session.ExamID)
		if err != nil {
			return err
		}
		scored, err := s.finalizeExpired(ctx, tx, session, exam)
		if err != nil {
			return err
		}
		outcome = scored
		return nil
	})
	if err != nil {
		return err
	}
	if outcome != nil {
		s.afterScored(ctx, outcome, true)
	}
	return nil
}

// finalizeExpired marks the session expired and scores whatever answers
// were last recorded. The student still gets a result when connectivity
// dies near the deadline.
func (s *sessionService) finalizeExpired(ctx context.Context, tx repositories.Repository, session *models.CBTSession, exam *models.ExamDefinition) (*models.ScoredOutcome, error) {
	key, err := s.bank.GetAnswerKey(ctx, session.ExamID)
	if err != nil {
		return nil, s.mapBankError(err)
	}

	session.Status = models.SessionExpired
	scored := ScoreSession(session, key, exam.PassThreshold, s.now())

	if err := tx.Session().Update(ctx, session); err != nil {
		return nil, storageErr("update session", err)
	}
	if err := tx.Session().CreateOutcome(ctx, &scored); err != nil {
		return nil, storageErr("create outcome", err)
	}
	if err := s.writeOutcomeGrade(ctx, tx, exam, &scored); err != nil {
		return nil, err
	}
	return &scored, nil
}

// writeOutcomeGrade records the system-scored grade alongside the outcome.
// A sealed term result blocks the grade to keep the published snapshot
// honest; the outcome itself still stands, so the scoring is not lost.
func (s *sessionService) writeOutcomeGrade(ctx context.Context, tx repositories.Repository, exam *models.ExamDefinition, outcome *models.ScoredOutcome) error {
	err := upsertGradeRecord(ctx, tx, gradeFromOutcome(exam, outcome), false)
	if errors.Is(err, ErrResultPublished) {
		s.logger.Warn("skipping grade write into published term",
			"session_id", outcome.SessionID,
			"student_id", outcome.StudentID,
			"term", exam.Term,
			"academic_year", exam.AcademicYear)
		return nil
	}
	return err
}

// ===== HELPERS =====

func (s *sessionService) getSessionForUpdate(ctx context.Context, tx repositories.Repository, sessionID string) (*models.CBTSession, error) {
	session, err := tx.Session().GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, storageErr("get session", err)
	}
	return session, nil
}

func (s *sessionService) getExam(ctx context.Context, examID string) (*models.ExamDefinition, error) {
	exam, err := s.bank.GetExamDefinition(ctx, examID)
	if err != nil {
		return nil, s.mapBankError(err)
	}
	return exam, nil
}

func (s *sessionService) mapBankError(err error) error {
	if errors.Is(err, exambank.ErrExamNotFound) {
		return ErrExamNotFound
	}
	return storageErr("question bank", err)
}

func (s *sessionService) afterScored(ctx context.Context, outcome *models.ScoredOutcome, expired bool) {
	s.cache.Delete(ctx, fmt.Sprintf(classResultsKeyFmt, outcome.ExamID))

	event := events.NewNotificationEvent(events.EventSessionScored, events.SessionScoredEvent{
		SessionID:  outcome.SessionID,
		ExamID:     outcome.ExamID,
		StudentID:  outcome.StudentID,
		Percentage: outcome.Percentage,
		Passed:     outcome.Passed,
		Expired:    expired,
		ScoredAt:   outcome.ComputedAt,
	})
	if err := s.publisher.PublishNotificationEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish session scored event",
			"session_id", outcome.SessionID, "error", err)
	}
}

func validateAnswer(questions []models.QuestionView, req *RecordAnswerRequest) error {
	for _, q := range questions {
		if q.ID == req.QuestionID {
			if req.OptionIndex >= len(q.Options) {
				return ValidationErrors{*NewValidationError("option_index", "exceeds option count", req.OptionIndex)}
			}
			return nil
		}
	}
	return ErrUnknownQuestion
}
