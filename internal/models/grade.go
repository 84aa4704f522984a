package models

import (
	"math"
	"time"
)

type Term string

const (
	Term1     Term = "term1"
	Term2     Term = "term2"
	TermFinal Term = "final"
)

func (t Term) Valid() bool {
	return t == Term1 || t == Term2 || t == TermFinal
}

type LetterGrade string

const (
	GradeA LetterGrade = "A"
	GradeB LetterGrade = "B"
	GradeC LetterGrade = "C"
	GradeD LetterGrade = "D"
	GradeF LetterGrade = "F"
)

// LetterGradeFor maps a percentage to its letter grade. Boundaries are
// inclusive on the lower edge: 85.00 is an A, 84.99 a B.
func LetterGradeFor(percentage float64) LetterGrade {
	switch {
	case percentage >= 85:
		return GradeA
	case percentage >= 70:
		return GradeB
	case percentage >= 55:
		return GradeC
	case percentage >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// RoundPercentage rounds to two decimal places, the precision every
// stored percentage in this service carries.
func RoundPercentage(v float64) float64 {
	return math.Round(v*100) / 100
}

// GradeRecord is one scored outcome per (student, subject, term, academic
// year), written either by the scoring engine or by manual teacher entry.
// Later writes upsert on the unique key, never duplicate.
type GradeRecord struct {
	ID           string      `json:"id" gorm:"primaryKey;size:64"`
	StudentID    string      `json:"student_id" gorm:"not null;size:64;uniqueIndex:idx_grades_key"`
	SubjectID    string      `json:"subject_id" gorm:"not null;size:64;uniqueIndex:idx_grades_key"`
	Term         Term        `json:"term" gorm:"not null;size:16;uniqueIndex:idx_grades_key"`
	AcademicYear string      `json:"academic_year" gorm:"not null;size:9;uniqueIndex:idx_grades_key"`
	ClassID      string      `json:"class_id" gorm:"not null;size:64;index"`
	TeacherID    *string     `json:"teacher_id" gorm:"size:64"` // nil when system-scored
	Marks        float64     `json:"marks" gorm:"not null"`
	MaxMarks     float64     `json:"max_marks" gorm:"not null"`
	Percentage   float64     `json:"percentage" gorm:"not null"`
	LetterGrade  LetterGrade `json:"letter_grade" gorm:"not null;size:2"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (GradeRecord) TableName() string {
	return "grade_records"
}

// Derive fills the computed fields from marks and max marks.
func (g *GradeRecord) Derive() {
	g.Percentage = 0
	if g.MaxMarks > 0 {
		g.Percentage = RoundPercentage(g.Marks / g.MaxMarks * 100)
	}
	g.LetterGrade = LetterGradeFor(g.Percentage)
}
