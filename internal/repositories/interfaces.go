package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"gorm.io/gorm"
)

// Repository bundles the per-aggregate repositories behind one handle so
// services can run several writes inside one transaction via WithTx.
type Repository interface {
	Session() SessionRepository
	Grade() GradeRepository
	Result() ResultRepository

	// WithTx runs fn with a Repository bound to a single transaction.
	// Returning an error rolls the transaction back.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// SessionRepository owns CBT sessions and their scored outcomes. Outcomes
// live here because they are created atomically with a session's terminal
// transition.
type SessionRepository interface {
	Create(ctx context.Context, session *models.CBTSession) error
	GetByID(ctx context.Context, id string) (*models.CBTSession, error)
	// GetByIDForUpdate takes a row lock; only meaningful inside WithTx.
	GetByIDForUpdate(ctx context.Context, id string) (*models.CBTSession, error)
	GetActive(ctx context.Context, examID, studentID string) (*models.CBTSession, error)
	Update(ctx context.Context, session *models.CBTSession) error
	UpdateAnswers(ctx context.Context, id string, answers map[string]int) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.CBTSession, error)

	CreateOutcome(ctx context.Context, outcome *models.ScoredOutcome) error
	GetOutcome(ctx context.Context, sessionID string) (*models.ScoredOutcome, error)
	GetOutcomeForStudent(ctx context.Context, examID, studentID string) (*models.ScoredOutcome, error)
	ListOutcomesByExam(ctx context.Context, examID string) ([]*models.ScoredOutcome, error)
}

// GradeRepository upserts grade records on the unique
// (student, subject, term, academic year) key.
type GradeRepository interface {
	Upsert(ctx context.Context, record *models.GradeRecord) error
	GetByKey(ctx context.Context, studentID, subjectID string, term models.Term, academicYear string) (*models.GradeRecord, error)
	ListForStudentTerm(ctx context.Context, studentID string, term models.Term, academicYear string) ([]*models.GradeRecord, error)
	ListForClassTerm(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.GradeRecord, error)
}

// ResultRepository owns term results. Publish and unpublish are
// conditional updates so concurrent callers cannot double-transition.
type ResultRepository interface {
	Upsert(ctx context.Context, result *models.TermResult) error
	GetByID(ctx context.Context, id string) (*models.TermResult, error)
	GetByKey(ctx context.Context, studentID string, term models.Term, academicYear string) (*models.TermResult, error)
	ListForStudent(ctx context.Context, studentID string) ([]*models.TermResult, error)
	ListForClass(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.TermResult, error)

	// MarkPublished sets is_published atomically; false when the result
	// was already published. MarkUnpublished is the inverse gate.
	MarkPublished(ctx context.Context, id string, at time.Time) (bool, error)
	MarkUnpublished(ctx context.Context, id string) (bool, error)
}

// IsNotFoundError reports whether err is the store's record-missing error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err is a unique-constraint violation.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
