package repository

import (
	"github.com/deppfellow/go-crud-api/internal/database"
	"github.com/deppfellow/go-crud-api/internal/models"
	"github.com/deppfellow/go-crud-api/internal/server"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	// Models serves every model in models.Meta over the shared pool.
	Models *database.Client
}

// NewRepositories constructs the repository container from the server's pool.
func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Models: database.NewClient(s.DB.Pool, models.Meta, s.Logger),
	}
}
