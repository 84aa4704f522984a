package models

// ExamDefinition describes a CBT exam as published by the question-bank
// service. This service only reads it; content authoring lives elsewhere.
type ExamDefinition struct {
	ID        string `json:"id" gorm:"primaryKey;size:64"`
	SubjectID string `json:"subject_id" gorm:"not null;size:64;index"`
	ClassID   string `json:"class_id" gorm:"not null;size:64;index"`
	Title     string `json:"title" gorm:"not null;size:200"`

	// Term and AcademicYear place the exam in the grading calendar; the
	// grade record a scored session produces is keyed by them.
	Term         Term   `json:"term" gorm:"not null;size:16"`
	AcademicYear string `json:"academic_year" gorm:"not null;size:9"`

	Duration      int     `json:"duration" gorm:"not null"` // minutes
	QuestionCount int     `json:"question_count" gorm:"not null"`
	PassThreshold float64 `json:"pass_threshold" gorm:"default:50"` // percentage
}

func (ExamDefinition) TableName() string {
	return "cbt_exams"
}

// Question is a single exam question. CorrectIndex is never serialized to
// students; session reads go through QuestionView.
type Question struct {
	ID           string   `json:"id" gorm:"primaryKey;size:64"`
	ExamID       string   `json:"exam_id" gorm:"not null;size:64;index"`
	Ordinal      int      `json:"ordinal" gorm:"not null"`
	Text         string   `json:"text" gorm:"type:text;not null"`
	Options      []string `json:"options" gorm:"serializer:json"`
	CorrectIndex int      `json:"-" gorm:"not null"`
}

func (Question) TableName() string {
	return "cbt_questions"
}

// QuestionView is the student-facing projection of a Question.
type QuestionView struct {
	ID      string   `json:"id"`
	Ordinal int      `json:"ordinal"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

func (q Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID,
		Ordinal: q.Ordinal,
		Text:    q.Text,
		Options: q.Options,
	}
}

// AnswerKey maps question id to the correct option index for one exam.
type AnswerKey map[string]int
