package service

import (
	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/deppfellow/go-crud-api/internal/server"
)

// AuthService configures Clerk for the process.
type AuthService struct {
	server *server.Server
}

// NewAuthService sets the Clerk secret key when one is configured.
func NewAuthService(s *server.Server) *AuthService {
	if s.Config.Auth.SecretKey != "" {
		clerk.SetKey(s.Config.Auth.SecretKey)
	}
	return &AuthService{
		server: s,
	}
}

// Enabled reports whether requests to the model API must be authenticated.
func (a *AuthService) Enabled() bool {
	return a.server.Config.Auth.SecretKey != ""
}
