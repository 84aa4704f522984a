// Package exambank reads exam definitions, questions, and answer keys
// published by the platform's question-bank service. The content itself is
// owned elsewhere; this service never writes it.
package exambank

import (
	"context"
	"errors"

	"github.com/brightclass/cbt-service/internal/models"
)

var ErrExamNotFound = errors.New("exambank: exam not found")

// Provider is the read-only view of the question bank.
type Provider interface {
	GetExamDefinition(ctx context.Context, examID string) (*models.ExamDefinition, error)
	// GetQuestions returns the student-facing question list, in ordinal
	// order, with no answer key.
	GetQuestions(ctx context.Context, examID string) ([]models.QuestionView, error)
	// GetAnswerKey is server-side only. The key must never reach a
	// session read.
	GetAnswerKey(ctx context.Context, examID string) (models.AnswerKey, error)
}
