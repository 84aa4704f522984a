package services

import (
	"context"
	"sync"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// memoryRepo is an in-memory repositories.Repository for service tests.
// WithTx serializes whole transactions on one mutex, which mirrors the
// row-lock guarantee the postgres implementation gives Submit and the
// expiry sweep.
type memoryRepo struct {
	txMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]models.CBTSession
	outcomes map[string]models.ScoredOutcome
	grades   map[string]models.GradeRecord
	results  map[string]models.TermResult
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sessions: make(map[string]models.CBTSession),
		outcomes: make(map[string]models.ScoredOutcome),
		grades:   make(map[string]models.GradeRecord),
		results:  make(map[string]models.TermResult),
	}
}

func gradeKey(studentID, subjectID string, term models.Term, year string) string {
	return studentID + "|" + subjectID + "|" + string(term) + "|" + year
}

func resultKey(studentID string, term models.Term, year string) string {
	return studentID + "|" + string(term) + "|" + year
}

func (r *memoryRepo) Session() repositories.SessionRepository { return (*memorySessions)(r) }
func (r *memoryRepo) Grade() repositories.GradeRepository     { return (*memoryGrades)(r) }
func (r *memoryRepo) Result() repositories.ResultRepository   { return (*memoryResults)(r) }

func (r *memoryRepo) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

// ===== SESSIONS =====

type memorySessions memoryRepo

func (r *memorySessions) Create(ctx context.Context, session *models.CBTSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirrors the partial unique index on active (exam_id, student_id).
	for _, existing := range r.sessions {
		if existing.ExamID == session.ExamID && existing.StudentID == session.StudentID &&
			existing.Status == models.SessionActive && session.Status == models.SessionActive {
			return gorm.ErrDuplicatedKey
		}
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *memorySessions) GetByID(ctx context.Context, id string) (*models.CBTSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &session, nil
}

func (r *memorySessions) GetByIDForUpdate(ctx context.Context, id string) (*models.CBTSession, error) {
	return r.GetByID(ctx, id)
}

func (r *memorySessions) GetActive(ctx context.Context, examID, studentID string) (*models.CBTSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ExamID == examID && session.StudentID == studentID && session.Status == models.SessionActive {
			s := session
			return &s, nil
		}
	}
	return nil, nil
}

func (r *memorySessions) Update(ctx context.Context, session *models.CBTSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *memorySessions) UpdateAnswers(ctx context.Context, id string, answers map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	copied := make(map[string]int, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	session.Answers = datatypes.NewJSONType(copied)
	r.sessions[id] = session
	return nil
}

func (r *memorySessions) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.CBTSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var overdue []*models.CBTSession
	for _, session := range r.sessions {
		if session.Status == models.SessionActive && session.Deadline.Before(now) {
			s := session
			overdue = append(overdue, &s)
			if len(overdue) == limit {
				break
			}
		}
	}
	return overdue, nil
}

func (r *memorySessions) CreateOutcome(ctx context.Context, outcome *models.ScoredOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outcomes[outcome.SessionID]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.outcomes[outcome.SessionID] = *outcome
	return nil
}

func (r *memorySessions) GetOutcome(ctx context.Context, sessionID string) (*models.ScoredOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome, ok := r.outcomes[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &outcome, nil
}

func (r *memorySessions) GetOutcomeForStudent(ctx context.Context, examID, studentID string) (*models.ScoredOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, outcome := range r.outcomes {
		if outcome.ExamID == examID && outcome.StudentID == studentID {
			o := outcome
			return &o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memorySessions) ListOutcomesByExam(ctx context.Context, examID string) ([]*models.ScoredOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var outcomes []*models.ScoredOutcome
	for _, outcome := range r.outcomes {
		if outcome.ExamID == examID {
			o := outcome
			outcomes = append(outcomes, &o)
		}
	}
	return outcomes, nil
}

// ===== GRADES =====

type memoryGrades memoryRepo

func (r *memoryGrades) Upsert(ctx context.Context, record *models.GradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := gradeKey(record.StudentID, record.SubjectID, record.Term, record.AcademicYear)
	if existing, ok := r.grades[key]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}
	r.grades[key] = *record
	return nil
}

func (r *memoryGrades) GetByKey(ctx context.Context, studentID, subjectID string, term models.Term, academicYear string) (*models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.grades[gradeKey(studentID, subjectID, term, academicYear)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &record, nil
}

func (r *memoryGrades) ListForStudentTerm(ctx context.Context, studentID string, term models.Term, academicYear string) ([]*models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []*models.GradeRecord
	for _, record := range r.grades {
		if record.StudentID == studentID && record.Term == term && record.AcademicYear == academicYear {
			g := record
			records = append(records, &g)
		}
	}
	return records, nil
}

func (r *memoryGrades) ListForClassTerm(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []*models.GradeRecord
	for _, record := range r.grades {
		if record.ClassID == classID && record.Term == term && record.AcademicYear == academicYear {
			g := record
			records = append(records, &g)
		}
	}
	return records, nil
}

// ===== RESULTS =====

type memoryResults memoryRepo

// Upsert matches the conflict clause in the postgres store: on a key hit
// the stored row is updated in place and the caller's id is NOT adopted.
func (r *memoryResults) Upsert(ctx context.Context, result *models.TermResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.results {
		if resultKey(existing.StudentID, existing.Term, existing.AcademicYear) ==
			resultKey(result.StudentID, result.Term, result.AcademicYear) {
			existing.ClassID = result.ClassID
			existing.Subjects = result.Subjects
			existing.TotalMarks = result.TotalMarks
			existing.TotalMaxMarks = result.TotalMaxMarks
			existing.AveragePercentage = result.AveragePercentage
			existing.OverallGrade = result.OverallGrade
			existing.UpdatedAt = result.UpdatedAt
			r.results[id] = existing
			return nil
		}
	}
	r.results[result.ID] = *result
	return nil
}

func (r *memoryResults) GetByID(ctx context.Context, id string) (*models.TermResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &result, nil
}

func (r *memoryResults) GetByKey(ctx context.Context, studentID string, term models.Term, academicYear string) (*models.TermResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if result.StudentID == studentID && result.Term == term && result.AcademicYear == academicYear {
			res := result
			return &res, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryResults) ListForStudent(ctx context.Context, studentID string) ([]*models.TermResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var results []*models.TermResult
	for _, result := range r.results {
		if result.StudentID == studentID {
			res := result
			results = append(results, &res)
		}
	}
	return results, nil
}

func (r *memoryResults) ListForClass(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.TermResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var results []*models.TermResult
	for _, result := range r.results {
		if result.ClassID == classID && result.Term == term && result.AcademicYear == academicYear {
			res := result
			results = append(results, &res)
		}
	}
	return results, nil
}

func (r *memoryResults) MarkPublished(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok || result.IsPublished {
		return false, nil
	}
	result.IsPublished = true
	result.PublishedAt = &at
	r.results[id] = result
	return true, nil
}

func (r *memoryResults) MarkUnpublished(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok || !result.IsPublished {
		return false, nil
	}
	result.IsPublished = false
	result.PublishedAt = nil
	r.results[id] = result
	return true, nil
}
