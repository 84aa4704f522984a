package exambank

import (
	"context"
	"errors"

	"github.com/brightclass/cbt-service/internal/models"
	"gorm.io/gorm"
)

// PostgresProvider reads the question-bank tables the authoring service
// maintains in the shared database.
type PostgresProvider struct {
	db *gorm.DB
}

func NewPostgresProvider(db *gorm.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) GetExamDefinition(ctx context.Context, examID string) (*models.ExamDefinition, error) {
	var exam models.ExamDefinition
	if err := p.db.WithContext(ctx).First(&exam, "id = ?", examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return &exam, nil
}

func (p *PostgresProvider) GetQuestions(ctx context.Context, examID string) ([]models.QuestionView, error) {
	questions, err := p.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	views := make([]models.QuestionView, len(questions))
	for i, q := range questions {
		views[i] = q.View()
	}
	return views, nil
}

func (p *PostgresProvider) GetAnswerKey(ctx context.Context, examID string) (models.AnswerKey, error) {
	questions, err := p.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	key := make(models.AnswerKey, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectIndex
	}
	return key, nil
}

func (p *PostgresProvider) load(ctx context.Context, examID string) ([]models.Question, error) {
	var questions []models.Question
	if err := p.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("ordinal asc").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		// Distinguish a missing exam from an empty one.
		var count int64
		if err := p.db.WithContext(ctx).Model(&models.ExamDefinition{}).Where("id = ?", examID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrExamNotFound
		}
	}
	return questions, nil
}
