package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/deppfellow/go-crud-api/internal/errs"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CustomValidationError represents a single validation issue for a specific field.
// This is used for validation errors that cannot be expressed via validator tags,
// or that come from map validation where the field name is only known to the caller.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// New returns a validator with the project's custom tags registered.
func New() *validator.Validate {
	v := validator.New()

	// uuidList accepts a comma-separated list of UUIDs.
	_ = v.RegisterValidation("uuidList", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		for _, id := range strings.Split(fl.Field().String(), ",") {
			if !IsValidUUID(strings.TrimSpace(id)) {
				return false
			}
		}
		return true
	})

	return v
}

// ValidateMap validates data against per-field validator tags.
//
// Unlike validator.ValidateMap, the result is flattened into
// CustomValidationErrors keyed by the map key, sorted by field so the
// output is stable. Returns nil when everything passes.
func ValidateMap(v *validator.Validate, data map[string]any, rules map[string]string) error {
	var out CustomValidationErrors

	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value, present := data[field]
		if !present {
			// Missing keys are only an error when the rule requires them.
			if strings.Contains(rules[field], "required") {
				out = append(out, CustomValidationError{Field: field, Message: "is required"})
			}
			continue
		}

		err := v.Var(numeric(value), rules[field])
		if err == nil {
			continue
		}

		ves, ok := err.(validator.ValidationErrors)
		if !ok {
			out = append(out, CustomValidationError{Field: field, Message: err.Error()})
			continue
		}
		for _, fe := range ves {
			out = append(out, CustomValidationError{Field: field, Message: message(field, fe)})
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// numeric unwraps json.Number so min/max compare values, not string length.
func numeric(value any) any {
	n, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return value
}

// FieldErrors converts a validation error into client-facing field errors.
//
// It understands validator.ValidationErrors and CustomValidationErrors.
// Any other error yields nil.
func FieldErrors(err error) []errs.FieldError {
	var fieldErrors []errs.FieldError

	switch e := err.(type) {
	case CustomValidationErrors:
		for _, ce := range e {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: ce.Field,
				Error: ce.Message,
			})
		}

	case validator.ValidationErrors:
		for _, fe := range e {
			field := strings.ToLower(fe.Field())
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: field,
				Error: message(field, fe),
			})
		}
	}

	return fieldErrors
}

// message turns a single validator failure into a user-friendly message.
func message(field string, err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"

	case "min":
		// min means length for strings, value for numbers
		if err.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", err.Param())
		}
		return fmt.Sprintf("must be at least %s", err.Param())

	case "max":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", err.Param())
		}
		return fmt.Sprintf("must not exceed %s", err.Param())

	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())

	case "email":
		return "must be a valid email address"

	case "e164":
		return "must be a valid phone number with country code"

	case "uuid":
		return "must be a valid UUID"

	case "uuidList":
		return "must be a comma-separated list of valid UUIDs"

	case "dive":
		return "some items are invalid"

	default:
		if err.Param() != "" {
			return fmt.Sprintf("%s: %s:%s", field, err.Tag(), err.Param())
		}
		return fmt.Sprintf("%s: %s", field, err.Tag())
	}
}

// IsValidUUID reports whether s is a UUID in any of the forms uuid.Parse accepts.
func IsValidUUID(s string) bool {
	return uuid.Validate(s) == nil
}
