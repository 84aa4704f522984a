package postgres

import (
	"context"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/brightclass/cbt-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db      *gorm.DB
	session *SessionPostgreSQL
	grade   *GradePostgreSQL
	result  *ResultPostgreSQL
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:      db,
		session: NewSessionPostgreSQL(db),
		grade:   NewGradePostgreSQL(db),
		result:  NewResultPostgreSQL(db),
	}
}

func (r *repository) Session() repositories.SessionRepository { return r.session }
func (r *repository) Grade() repositories.GradeRepository     { return r.grade }
func (r *repository) Result() repositories.ResultRepository   { return r.result }

func (r *repository) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// AutoMigrate creates the tables this service owns. Exam and question
// tables belong to the question-bank service and are not migrated here.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.CBTSession{},
		&models.ScoredOutcome{},
		&models.GradeRecord{},
		&models.TermResult{},
	); err != nil {
		return err
	}

	// One active session per (exam, student). The check in Start runs
	// under read committed, so two concurrent starts can both miss the
	// existing row; this index makes the second insert fail instead.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uidx_cbt_sessions_one_active
		ON cbt_sessions (exam_id, student_id) WHERE status = 'active'`).Error
}
