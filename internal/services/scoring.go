package services

import (
	"time"

	"github.com/brightclass/cbt-service/internal/models"
)

// ScoreSession computes the outcome for a submitted answer map against an
// exam's answer key. Pure: no clock reads beyond the supplied computedAt,
// no storage access. Unanswered questions count as incorrect; a session
// with no answers at all scores 0%, not an error.
func ScoreSession(session *models.CBTSession, key models.AnswerKey, passThreshold float64, computedAt time.Time) models.ScoredOutcome {
	answers := session.AnswerMap()

	correct := 0
	for questionID, correctIndex := range key {
		selected, answered := answers[questionID]
		if answered && selected == correctIndex {
			correct++
		}
	}

	total := len(key)
	percentage := 0.0
	if total > 0 {
		percentage = models.RoundPercentage(float64(correct) / float64(total) * 100)
	}

	return models.ScoredOutcome{
		SessionID:       session.ID,
		ExamID:          session.ExamID,
		StudentID:       session.StudentID,
		RawCorrectCount: correct,
		TotalQuestions:  total,
		Percentage:      percentage,
		Passed:          percentage >= passThreshold,
		ComputedAt:      computedAt,
	}
}
