package postgres

import (
	"context"
	"time"

	"github.com/brightclass/cbt-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) *ResultPostgreSQL {
	return &ResultPostgreSQL{db: db}
}

func (r *ResultPostgreSQL) Upsert(ctx context.Context, result *models.TermResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "student_id"}, {Name: "term"}, {Name: "academic_year"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"class_id", "subjects", "total_marks", "total_max_marks",
				"average_percentage", "overall_grade", "updated_at",
			}),
		}).
		Create(result).Error
}

func (r *ResultPostgreSQL) GetByID(ctx context.Context, id string) (*models.TermResult, error) {
	var result models.TermResult
	if err := r.db.WithContext(ctx).First(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetByKey(ctx context.Context, studentID string, term models.Term, academicYear string) (*models.TermResult, error) {
	var result models.TermResult
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND term = ? AND academic_year = ?", studentID, term, academicYear).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultPostgreSQL) ListForStudent(ctx context.Context, studentID string) ([]*models.TermResult, error) {
	var results []*models.TermResult
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("academic_year desc, term asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ResultPostgreSQL) ListForClass(ctx context.Context, classID string, term models.Term, academicYear string) ([]*models.TermResult, error) {
	var results []*models.TermResult
	if err := r.db.WithContext(ctx).
		Where("class_id = ? AND term = ? AND academic_year = ?", classID, term, academicYear).
		Order("student_id asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkPublished flips is_published only when it is currently false, so two
// racing publishers cannot both succeed.
func (r *ResultPostgreSQL) MarkPublished(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TermResult{}).
		Where("id = ? AND is_published = false", id).
		Updates(map[string]interface{}{
			"is_published": true,
			"published_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ResultPostgreSQL) MarkUnpublished(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TermResult{}).
		Where("id = ? AND is_published = true", id).
		Updates(map[string]interface{}{
			"is_published": false,
			"published_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
