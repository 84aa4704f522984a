package roster

import (
	"context"
	"sync"

	"github.com/brightclass/cbt-service/internal/models"
)

// StaticProvider holds a fixed roster in memory. Used in tests and when
// the directory integration is disabled.
type StaticProvider struct {
	mu       sync.RWMutex
	students map[string]models.Student
	classes  map[string]models.Class
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		students: make(map[string]models.Student),
		classes:  make(map[string]models.Class),
	}
}

func (p *StaticProvider) AddStudent(s models.Student) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.students[s.ID] = s
}

func (p *StaticProvider) AddClass(c models.Class) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classes[c.ID] = c
}

func (p *StaticProvider) GetStudent(ctx context.Context, studentID string) (*models.Student, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.students[studentID]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return &s, nil
}

func (p *StaticProvider) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.classes[classID]
	if !ok {
		return nil, ErrClassNotFound
	}
	return &c, nil
}
