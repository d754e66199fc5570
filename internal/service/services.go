package service

import (
	"github.com/deppfellow/go-crud-api/internal/lib/job"
	"github.com/deppfellow/go-crud-api/internal/repository"
	"github.com/deppfellow/go-crud-api/internal/server"
)

// Services groups all services.
type Services struct {
	Auth *AuthService
	Job  *job.JobService
}

// NewServices constructs the service container.
func NewServices(s *server.Server, repos *repository.Repositories) (*Services, error) {
	return &Services{
		Auth: NewAuthService(s),
		Job:  s.Job,
	}, nil
}
