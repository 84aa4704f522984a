// Package roster resolves student and class identity from the platform's
// directory. Lookups stamp identifying fields on grade records and term
// results; nothing beyond existence is validated here.
package roster

import (
	"context"
	"errors"

	"github.com/brightclass/cbt-service/internal/models"
)

var (
	ErrStudentNotFound = errors.New("roster: student not found")
	ErrClassNotFound   = errors.New("roster: class not found")
)

type Provider interface {
	GetStudent(ctx context.Context, studentID string) (*models.Student, error)
	GetClass(ctx context.Context, classID string) (*models.Class, error)
}
