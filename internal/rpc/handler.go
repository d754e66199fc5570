package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/deppfellow/go-crud-api/internal/errs"
	"github.com/deppfellow/go-crud-api/internal/sqlerr"
	"github.com/deppfellow/go-crud-api/internal/validation"
	"github.com/rs/zerolog"
)

// methodOps lists the operations each HTTP method may carry.
var methodOps = map[string][]crud.Operation{
	http.MethodGet: {
		crud.OpFindUnique, crud.OpFindFirst, crud.OpFindMany,
		crud.OpCount, crud.OpAggregate, crud.OpGroupBy,
	},
	http.MethodPost:   {crud.OpCreate, crud.OpCreateMany, crud.OpUpsert},
	http.MethodPut:    {crud.OpUpdate, crud.OpUpdateMany},
	http.MethodPatch:  {crud.OpUpdate, crud.OpUpdateMany},
	http.MethodDelete: {crud.OpDelete, crud.OpDeleteMany},
}

// NewHandler returns the RPC-style request handler.
func NewHandler(opts ...Option) crud.RequestHandler {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return func(ctx context.Context, req crud.Request) (crud.Response, error) {
		logger := req.Logger
		if logger == nil {
			// request-scoped logger set by the HTTP middleware
			if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
				logger = l
			}
		}
		if logger == nil {
			logger = o.logger
		}
		if logger == nil {
			nop := zerolog.Nop()
			logger = &nop
		}
		return o.serve(ctx, req, logger), nil
	}
}

func (o *options) serve(ctx context.Context, req crud.Request, logger *zerolog.Logger) crud.Response {
	model, op, ok := splitPath(req.Path)
	if !ok {
		return badRequest("invalid request path")
	}

	method := strings.ToUpper(req.Method)
	if !allowed(method, op) {
		return badRequest(fmt.Sprintf("invalid request method %s for operation %s", method, op))
	}

	// Without metadata the client is the only judge of model names.
	if _, known := req.ModelMeta.Lookup(model); req.ModelMeta != nil && !known {
		return badRequest(fmt.Sprintf("unknown model name: %s", model))
	}
	model = crud.LowerFirst(model)

	var (
		args crud.Args
		err  error
	)
	// reads and deletes carry their args in q
	if op.IsRead() || method == http.MethodDelete {
		args, err = decodeArgs([]byte(first(req.Query, "q")))
	} else {
		args, err = decodeArgs(req.Body)
	}
	if err != nil {
		return badRequest(err.Error())
	}

	if op.IsMutation() {
		if err := req.Schemas.Validate(model, string(op), args); err != nil {
			logger.Warn().Err(err).Str("model", model).Str("operation", string(op)).Msg("input validation failed")
			return errorResponse(errs.NewUnprocessableEntityError("Validation failed", validation.FieldErrors(err)))
		}
	}

	result, err := req.Client.Do(ctx, model, op, args)
	if err != nil {
		var httpErr *errs.HTTPError
		if !errors.As(sqlerr.HandleError(err), &httpErr) {
			httpErr = errs.NewInternalServerError()
		}

		event := logger.Warn()
		if httpErr.Status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(err).
			Str("model", model).
			Str("operation", string(op)).
			Int("status", httpErr.Status).
			Msg("operation failed")

		return errorResponse(httpErr)
	}

	if op.IsMutation() && o.onMutation != nil {
		o.onMutation(ctx, model, string(op), result)
	}

	status := http.StatusOK
	if method == http.MethodPost {
		status = http.StatusCreated
	}
	return crud.Response{Status: status, Body: map[string]any{"data": result}}
}

// splitPath splits "user/findMany" into its model and operation.
func splitPath(path string) (string, crud.Operation, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], crud.Operation(parts[1]), true
}

func allowed(method string, op crud.Operation) bool {
	for _, candidate := range methodOps[method] {
		if candidate == op {
			return true
		}
	}
	return false
}

// decodeArgs parses a JSON object, keeping numbers as json.Number so
// bigint ids survive. Empty input yields empty args.
func decodeArgs(raw []byte) (crud.Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return crud.Args{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var args crud.Args
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("invalid request arguments: %w", err)
	}
	if args == nil {
		return crud.Args{}, nil
	}
	return args, nil
}

func first(query map[string][]string, key string) string {
	if values := query[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func badRequest(message string) crud.Response {
	return errorResponse(errs.NewBadRequestError(message, true, nil, nil))
}

func errorResponse(err *errs.HTTPError) crud.Response {
	return crud.Response{
		Status: err.Status,
		Body:   map[string]any{"error": err},
	}
}
