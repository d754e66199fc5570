// Package crud defines the contract shared by the HTTP adapter, the RPC
// request handler, and the data-access client.
//
// Nothing in here talks to a database or to Echo. It only names the shapes
// that flow between those layers:
//   - Client: the data-access client obtained per request
//   - Request / Response: the input and output of a RequestHandler
//   - ModelMeta: which models exist and how they map onto tables
package crud

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/deppfellow/go-crud-api/internal/schema"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownModel is returned when a model name is not present in ModelMeta.
	ErrUnknownModel = errors.New("unknown model name")

	// ErrUnknownField is returned when args reference a field the model does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrNotFound is returned by single-record operations that matched nothing.
	ErrNotFound = errors.New("record not found")

	// ErrUnsupportedOperation is returned for operations the client does not implement.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidArgs is returned when operation arguments have the wrong shape.
	ErrInvalidArgs = errors.New("invalid arguments")
)

// Args holds the arguments of a single operation, e.g.
//
//	{"where": {"id": 1}, "select": {"email": true}}
type Args = map[string]any

// Client is the data-access client a RequestHandler delegates to.
//
// Do executes one operation against one model and returns a JSON-friendly
// result (a map, a slice of maps, or a number for count).
type Client interface {
	Do(ctx context.Context, model string, op Operation, args Args) (any, error)
}

// Request is the fixed input contract of a RequestHandler.
type Request struct {
	Method    string
	Path      string
	Query     map[string][]string
	Body      json.RawMessage
	Client    Client
	ModelMeta *ModelMeta
	Schemas   *schema.Bundle

	// Logger is passed through untouched; it may be nil.
	Logger *zerolog.Logger
}

// Response is the fixed output contract of a RequestHandler.
type Response struct {
	Status int
	Body   any
}

// RequestHandler performs the actual data operation for a request.
type RequestHandler func(ctx context.Context, req Request) (Response, error)
