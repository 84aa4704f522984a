package services

import (
	"testing"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func sessionWithAnswers(answers map[string]int) *models.CBTSession {
	return &models.CBTSession{
		ID:        "session-1",
		ExamID:    "exam-1",
		StudentID: "student-1",
		Status:    models.SessionSubmitted,
		Answers:   datatypes.NewJSONType(answers),
	}
}

func TestScoreSession(t *testing.T) {
	key := models.AnswerKey{"q1": 0, "q2": 1, "q3": 2, "q4": 3}
	computedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		answers     map[string]int
		threshold   float64
		wantCorrect int
		wantPercent float64
		wantPassed  bool
	}{
		{
			name:        "all correct",
			answers:     map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 3},
			threshold:   50,
			wantCorrect: 4,
			wantPercent: 100,
			wantPassed:  true,
		},
		{
			name:        "half correct at threshold passes",
			answers:     map[string]int{"q1": 0, "q2": 1, "q3": 0, "q4": 0},
			threshold:   50,
			wantCorrect: 2,
			wantPercent: 50,
			wantPassed:  true,
		},
		{
			name:        "below threshold fails",
			answers:     map[string]int{"q1": 0, "q2": 0, "q3": 0, "q4": 0},
			threshold:   50,
			wantCorrect: 1,
			wantPercent: 25,
			wantPassed:  false,
		},
		{
			name:        "unanswered count as incorrect",
			answers:     map[string]int{"q1": 0},
			threshold:   50,
			wantCorrect: 1,
			wantPercent: 25,
			wantPassed:  false,
		},
		{
			name:        "no answers scores zero",
			answers:     map[string]int{},
			threshold:   50,
			wantCorrect: 0,
			wantPercent: 0,
			wantPassed:  false,
		},
		{
			name:        "nil answer map scores zero",
			answers:     nil,
			threshold:   50,
			wantCorrect: 0,
			wantPercent: 0,
			wantPassed:  false,
		},
		{
			name:        "custom threshold just missed",
			answers:     map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 0},
			threshold:   80,
			wantCorrect: 3,
			wantPercent: 75,
			wantPassed:  false,
		},
		{
			name:        "answer for unknown question is ignored",
			answers:     map[string]int{"q1": 0, "q99": 0},
			threshold:   50,
			wantCorrect: 1,
			wantPercent: 25,
			wantPassed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := ScoreSession(sessionWithAnswers(tt.answers), key, tt.threshold, computedAt)

			assert.Equal(t, "session-1", outcome.SessionID)
			assert.Equal(t, "exam-1", outcome.ExamID)
			assert.Equal(t, "student-1", outcome.StudentID)
			assert.Equal(t, tt.wantCorrect, outcome.RawCorrectCount)
			assert.Equal(t, 4, outcome.TotalQuestions)
			assert.Equal(t, tt.wantPercent, outcome.Percentage)
			assert.Equal(t, tt.wantPassed, outcome.Passed)
			assert.Equal(t, computedAt, outcome.ComputedAt)
		})
	}
}

func TestScoreSessionRounding(t *testing.T) {
	// 1 of 3 correct is 33.333...; the stored percentage carries two
	// decimals.
	key := models.AnswerKey{"q1": 0, "q2": 1, "q3": 2}
	outcome := ScoreSession(sessionWithAnswers(map[string]int{"q1": 0}), key, 50, time.Now())

	assert.Equal(t, 33.33, outcome.Percentage)
	assert.False(t, outcome.Passed)

	outcome = ScoreSession(sessionWithAnswers(map[string]int{"q1": 0, "q2": 1}), key, 50, time.Now())
	assert.Equal(t, 66.67, outcome.Percentage)
	assert.True(t, outcome.Passed)
}

func TestScoreSessionEmptyKey(t *testing.T) {
	outcome := ScoreSession(sessionWithAnswers(map[string]int{"q1": 0}), models.AnswerKey{}, 50, time.Now())

	assert.Equal(t, 0, outcome.RawCorrectCount)
	assert.Equal(t, 0, outcome.TotalQuestions)
	assert.Equal(t, 0.0, outcome.Percentage)
	assert.False(t, outcome.Passed)
}

func TestLetterGradeBoundaries(t *testing.T) {
	tests := []struct {
		percentage float64
		want       models.LetterGrade
	}{
		{100, models.GradeA},
		{85, models.GradeA},
		{84.99, models.GradeB},
		{70, models.GradeB},
		{69.99, models.GradeC},
		{55, models.GradeC},
		{54.99, models.GradeD},
		{40, models.GradeD},
		{39.99, models.GradeF},
		{0, models.GradeF},
	}

	for _, tt := range tests {
		if got := models.LetterGradeFor(tt.percentage); got != tt.want {
			t.Errorf("LetterGradeFor(%v) = %s, want %s", tt.percentage, got, tt.want)
		}
	}
}
