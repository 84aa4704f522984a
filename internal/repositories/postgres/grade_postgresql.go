package postgres

import (
	"context"

	"github.com/brightclass/cbt-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GradePostgreSQL struct {
	db *gorm.DB
}

func NewGradePostgreSQL(db *gorm.DB) *GradePostgreSQL {
	return &GradePostgreSQL{db: db}
}

// Upsert writes a grade record, replacing any prior row on the same
// (student, subject, term, academic year) key.
func (g *GradePostgreSQL) Upsert(ctx context.Context, record *models.GradeRecord) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "student_id"}, {Name: "subject_id"}, {Name: "term"}, {Name: "academic_year"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"class_id", "teacher_id", "marks", "max_marks", "percentage", "letter_grade", "updated_at",
			}),
		}).
		Create(record).Error
}

func (g *GradePostgreSQL) GetByKey(ctx context.Context, studentID, subjectID string, term models.Term, academicYear string) (*models.GradeRecord, error) {
	var record models.GradeRecord
	if err := g.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND term = ? AND academic_year = ?",
			studentID, subjectID, term, academicYear).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (g *GradePostgreSQL) ListForStudentTerm(ctx context.Context, studentID string, term models.Term, academicYear string) ([]*models.GradeRecord, error) {
	var records []*models.GradeRecord
	if err := g.db.WithContext(ctx).
		Where("student_id = ? AND term = ? AND academic_year = ?", studentID, term, academicYear).
		Order("subject_id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (g *GradePostgreSQL) ListForClassTerm(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.GradeRecord, error) {
	var records []*models.GradeRecord
	if err := g.db.WithContext(ctx).
		Where("class_id = ? AND term = ? AND academic_year = ?", classID, term, academicYear).
		Order("student_id asc, subject_id asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
