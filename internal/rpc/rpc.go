// Package rpc is the default crud.RequestHandler.
//
// Requests are addressed as "<model>/<operation>", e.g.
//
//	GET    /api/model/user/findMany?q={"where":{"role":"ADMIN"}}
//	POST   /api/model/post/create      {"data": {...}}
//	PATCH  /api/model/post/update      {"where": {...}, "data": {...}}
//	DELETE /api/model/post/delete?q={"where":{"id":1}}
//
// Successful calls answer {"data": <result>}; failures answer
// {"error": <errs.HTTPError>}.
package rpc

import (
	"context"

	"github.com/rs/zerolog"
)

// MutationHook is called after a mutation succeeded.
type MutationHook func(ctx context.Context, model, op string, result any)

type options struct {
	onMutation MutationHook
	logger     *zerolog.Logger
}

// Option configures the handler returned by NewHandler.
type Option func(*options)

// WithMutationHook registers fn to run after every successful mutation.
func WithMutationHook(fn MutationHook) Option {
	return func(o *options) {
		o.onMutation = fn
	}
}

// WithLogger sets the logger used when the request carries none.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
