package events

import (
	"time"

	"github.com/brightclass/cbt-service/internal/models"
)

// EventType represents the notification events this service emits. The
// platform's notification service consumes them; delivery is out of scope
// here.
type EventType string

const (
	// Session events
	EventSessionScored  EventType = "session.scored"
	EventSessionExpired EventType = "session.expired"

	// Term result events
	EventResultPublished   EventType = "term_result.published"
	EventResultUnpublished EventType = "term_result.unpublished"
)

// NotificationEvent is the envelope for all events on the wire.
type NotificationEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SessionScoredEvent struct {
	SessionID  string    `json:"session_id"`
	ExamID     string    `json:"exam_id"`
	StudentID  string    `json:"student_id"`
	Percentage float64   `json:"percentage"`
	Passed     bool      `json:"passed"`
	Expired    bool      `json:"expired"` // true for best-effort auto-submit
	ScoredAt   time.Time `json:"scored_at"`
}

type ResultPublishedEvent struct {
	TermResultID      string             `json:"term_result_id"`
	StudentID         string             `json:"student_id"`
	ClassID           string             `json:"class_id"`
	Term              models.Term        `json:"term"`
	AcademicYear      string             `json:"academic_year"`
	AveragePercentage float64            `json:"average_percentage"`
	OverallGrade      models.LetterGrade `json:"overall_grade"`
	PublishedAt       time.Time          `json:"published_at"`
}
