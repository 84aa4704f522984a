package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubjectLine is the per-subject summary embedded in a TermResult snapshot.
type SubjectLine struct {
	SubjectID   string      `json:"subject_id"`
	Marks       float64     `json:"marks"`
	MaxMarks    float64     `json:"max_marks"`
	Percentage  float64     `json:"percentage"`
	LetterGrade LetterGrade `json:"letter_grade"`
}

// TermResult collapses all grade records for a (student, term, academic
// year) into one publishable row. Aggregation recomputes it freely before
// publication; once published the snapshot is frozen until an explicit
// unpublish.
type TermResult struct {
	ID           string `json:"id" gorm:"primaryKey;size:64"`
	StudentID    string `json:"student_id" gorm:"not null;size:64;uniqueIndex:idx_results_key"`
	Term         Term   `json:"term" gorm:"not null;size:16;uniqueIndex:idx_results_key"`
	AcademicYear string `json:"academic_year" gorm:"not null;size:9;uniqueIndex:idx_results_key"`
	ClassID      string `json:"class_id" gorm:"not null;size:64;index"`

	Subjects          datatypes.JSONType[[]SubjectLine] `json:"subjects" gorm:"type:jsonb"`
	TotalMarks        float64                           `json:"total_marks" gorm:"not null"`
	TotalMaxMarks     float64                           `json:"total_max_marks" gorm:"not null"`
	AveragePercentage float64                           `json:"average_percentage" gorm:"not null"`
	OverallGrade      LetterGrade                       `json:"overall_grade" gorm:"not null;size:2"`

	IsPublished bool       `json:"is_published" gorm:"not null;default:false;index"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (TermResult) TableName() string {
	return "term_results"
}

// SubjectLines returns the embedded summaries, never nil.
func (r *TermResult) SubjectLines() []SubjectLine {
	lines := r.Subjects.Data()
	if lines == nil {
		return []SubjectLine{}
	}
	return lines
}
