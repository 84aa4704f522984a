package models

import (
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionSubmitted SessionStatus = "submitted"
	SessionExpired   SessionStatus = "expired"
)

// IsTerminal reports whether the session accepts no further mutation.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionSubmitted || s == SessionExpired
}

// CBTSession is one student's attempt at one exam. The server-side deadline
// and answer map are authoritative; clients only relay input. Deadline is
// fixed at creation and never extended.
type CBTSession struct {
	ID        string        `json:"id" gorm:"primaryKey;size:64"`
	ExamID    string        `json:"exam_id" gorm:"not null;size:64;index:idx_sessions_exam_student"`
	StudentID string        `json:"student_id" gorm:"not null;size:64;index:idx_sessions_exam_student"`
	Status    SessionStatus `json:"status" gorm:"not null;default:active;index"`
	StartedAt time.Time     `json:"started_at" gorm:"not null"`
	Deadline  time.Time     `json:"deadline" gorm:"not null;index"`

	// Answers maps question id -> selected option index. Partial while
	// active, frozen on the terminal transition.
	Answers datatypes.JSONType[map[string]int] `json:"answers" gorm:"type:jsonb"`

	SubmittedAt *time.Time `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Outcome *ScoredOutcome `json:"outcome,omitempty" gorm:"foreignKey:SessionID"`
}

func (CBTSession) TableName() string {
	return "cbt_sessions"
}

// PastDeadline reports whether now is beyond the deadline plus grace.
func (s *CBTSession) PastDeadline(now time.Time, grace time.Duration) bool {
	return now.After(s.Deadline.Add(grace))
}

// AnswerMap returns the recorded answers, never nil.
func (s *CBTSession) AnswerMap() map[string]int {
	m := s.Answers.Data()
	if m == nil {
		return map[string]int{}
	}
	return m
}

// ScoredOutcome is the immutable result of scoring one session.
type ScoredOutcome struct {
	SessionID       string    `json:"session_id" gorm:"primaryKey;size:64"`
	ExamID          string    `json:"exam_id" gorm:"not null;size:64;index"`
	StudentID       string    `json:"student_id" gorm:"not null;size:64;index"`
	RawCorrectCount int       `json:"raw_correct_count" gorm:"not null"`
	TotalQuestions  int       `json:"total_questions" gorm:"not null"`
	Percentage      float64   `json:"percentage" gorm:"not null"`
	Passed          bool      `json:"passed" gorm:"not null"`
	ComputedAt      time.Time `json:"computed_at" gorm:"not null"`
}

func (ScoredOutcome) TableName() string {
	return "cbt_outcomes"
}
