package errs

import (
	"net/http"
)

// codeFor builds the default code for a status, e.g. 404 -> "NOT_FOUND".
func codeFor(status int) string {
	return MakeUpperCaseWithUnderscores(http.StatusText(status))
}

func newError(status int, message string, override bool, code *string) *HTTPError {
	e := &HTTPError{
		Code:     codeFor(status),
		Message:  message,
		Status:   status,
		Override: override,
	}
	if code != nil {
		e.Code = *code
	}
	return e
}

// New creates an HTTPError for an arbitrary status with the default code.
func New(status int, message string) *HTTPError {
	return newError(status, message, false, nil)
}

// NewUnauthorizedError creates a 401. override lets middleware swap the
// message out, e.g. to hide detail in production.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return newError(http.StatusUnauthorized, message, override, nil)
}

// NewBadRequestError creates a 400. code replaces "BAD_REQUEST" when set;
// errors is optional.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError) *HTTPError {
	e := newError(http.StatusBadRequest, message, override, code)
	e.Errors = errors
	return e
}

func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	return newError(http.StatusNotFound, message, override, code)
}

// NewUnprocessableEntityError reports input that parsed but failed schema
// validation.
func NewUnprocessableEntityError(message string, errors []FieldError) *HTTPError {
	e := newError(http.StatusUnprocessableEntity, message, true, nil)
	e.Errors = errors
	return e
}

func NewTooManyRequestsError(message string) *HTTPError {
	return newError(http.StatusTooManyRequests, message, false, nil)
}

// NewInternalServerError always carries the generic status text; the real
// cause stays in the logs.
func NewInternalServerError() *HTTPError {
	return New(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
