package exambank

import (
	"context"
	"sync"

	"github.com/brightclass/cbt-service/internal/models"
)

// MemoryProvider serves exams from memory. Used in tests and in local
// development seeded from fixtures.
type MemoryProvider struct {
	mu        sync.RWMutex
	exams     map[string]models.ExamDefinition
	questions map[string][]models.Question
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		exams:     make(map[string]models.ExamDefinition),
		questions: make(map[string][]models.Question),
	}
}

// AddExam registers an exam and its questions.
func (m *MemoryProvider) AddExam(exam models.ExamDefinition, questions []models.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exam.QuestionCount = len(questions)
	m.exams[exam.ID] = exam
	m.questions[exam.ID] = questions
}

func (m *MemoryProvider) GetExamDefinition(ctx context.Context, examID string) (*models.ExamDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exam, ok := m.exams[examID]
	if !ok {
		return nil, ErrExamNotFound
	}
	return &exam, nil
}

func (m *MemoryProvider) GetQuestions(ctx context.Context, examID string) ([]models.QuestionView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	questions, ok := m.questions[examID]
	if !ok {
		return nil, ErrExamNotFound
	}
	views := make([]models.QuestionView, len(questions))
	for i, q := range questions {
		views[i] = q.View()
	}
	return views, nil
}

func (m *MemoryProvider) GetAnswerKey(ctx context.Context, examID string) (models.AnswerKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	questions, ok := m.questions[examID]
	if !ok {
		return nil, ErrExamNotFound
	}
	key := make(models.AnswerKey, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectIndex
	}
	return key, nil
}
