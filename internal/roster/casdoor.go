package roster

import (
	"context"

	"github.com/brightclass/cbt-service/internal/models"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
)

// CasdoorProvider resolves roster identity from the Casdoor instance the
// platform uses for user management. Students are Casdoor users; classes
// are Casdoor groups.
type CasdoorProvider struct {
	client *casdoorsdk.Client
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

func NewCasdoorProvider(cfg CasdoorConfig) *CasdoorProvider {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorProvider{client: client}
}

func (p *CasdoorProvider) GetStudent(ctx context.Context, studentID string) (*models.Student, error) {
	user, err := p.client.GetUser(studentID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrStudentNotFound
	}

	classID := ""
	if len(user.Groups) > 0 {
		classID = user.Groups[0]
	}

	return &models.Student{
		ID:       user.Name,
		FullName: user.DisplayName,
		ClassID:  classID,
	}, nil
}

func (p *CasdoorProvider) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	group, err := p.client.GetGroup(classID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrClassNotFound
	}
	return &models.Class{
		ID:   group.Name,
		Name: group.DisplayName,
	}, nil
}
