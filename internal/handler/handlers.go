package handler

import (
	"fmt"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/deppfellow/go-crud-api/internal/middleware"
	"github.com/deppfellow/go-crud-api/internal/models"
	"github.com/deppfellow/go-crud-api/internal/repository"
	"github.com/deppfellow/go-crud-api/internal/rpc"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/deppfellow/go-crud-api/internal/service"
	"github.com/labstack/echo/v4"
)

// Handlers groups all HTTP handlers so the router receives a single value.
type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler

	// Crud serves every method under the model API prefix.
	Crud echo.HandlerFunc
}

// NewHandlers constructs the handler container.
//
// It fails when the model API is configured to use default schemas but
// none are registered.
func NewHandlers(s *server.Server, services *service.Services, repos *repository.Repositories) (*Handlers, error) {
	rpcOpts := []rpc.Option{rpc.WithLogger(s.Logger)}
	if services.Job != nil {
		rpcOpts = append(rpcOpts, rpc.WithMutationHook(services.Job.EnqueueMutation))
	}

	crudHandler, err := NewPagesRouteHandler(PagesRouteOptions{
		GetClient: func(c echo.Context) (crud.Client, error) {
			if repos.Models == nil {
				return nil, nil
			}
			return repos.Models.WithLogger(middleware.GetLogger(c)), nil
		},
		ModelMeta:          models.Meta,
		LoadDefaultSchemas: s.Config.API.DefaultSchemas,
		Handler:            rpc.NewHandler(rpcOpts...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model API handler: %w", err)
	}

	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
		Crud:    instrument("crud", crudHandler),
	}, nil
}
