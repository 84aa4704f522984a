package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) *SessionPostgreSQL {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.CBTSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.CBTSession, error) {
	var session models.CBTSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByIDForUpdate(ctx context.Context, id string) (*models.CBTSession, error) {
	var session models.CBTSession
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetActive(ctx context.Context, examID, studentID string) (*models.CBTSession, error) {
	var session models.CBTSession
	if err := s.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ? AND status = ?", examID, studentID, models.SessionActive).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, session *models.CBTSession) error {
	return s.db.WithContext(ctx).Save(session).Error
}

func (s *SessionPostgreSQL) UpdateAnswers(ctx context.Context, id string, answers map[string]int) error {
	return s.db.WithContext(ctx).
		Model(&models.CBTSession{}).
		Where("id = ?", id).
		Update("answers", datatypes.NewJSONType(answers)).Error
}

func (s *SessionPostgreSQL) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.CBTSession, error) {
	var sessions []*models.CBTSession
	query := s.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", models.SessionActive, now).
		Order("deadline asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) CreateOutcome(ctx context.Context, outcome *models.ScoredOutcome) error {
	return s.db.WithContext(ctx).Create(outcome).Error
}

func (s *SessionPostgreSQL) GetOutcome(ctx context.Context, sessionID string) (*models.ScoredOutcome, error) {
	var outcome models.ScoredOutcome
	if err := s.db.WithContext(ctx).First(&outcome, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *SessionPostgreSQL) GetOutcomeForStudent(ctx context.Context, examID, studentID string) (*models.ScoredOutcome, error) {
	var outcome models.ScoredOutcome
	if err := s.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Order("computed_at desc").
		First(&outcome).Error; err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *SessionPostgreSQL) ListOutcomesByExam(ctx context.Context, examID string) ([]*models.ScoredOutcome, error) {
	var outcomes []*models.ScoredOutcome
	if err := s.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("percentage desc").
		Find(&outcomes).Error; err != nil {
		return nil, err
	}
	return outcomes, nil
}
