package sqlerr

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/deppfellow/go-crud-api/internal/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrCode reports the mapped Code for err, or Other.
func ErrCode(err error) Code {
	var pgerr *Error
	if errors.As(err, &pgerr) {
		return pgerr.Code
	}
	return Other
}

// ConvertPgError converts a raw Postgres error into our Error.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

// HandleError converts a data-access error into the error the client sees.
//
//   - *errs.HTTPError: returned unchanged
//   - crud sentinels: 404 for ErrNotFound, 400 for bad arguments
//   - constraint violations: 400 with a "<ENTITY>_<PROBLEM>" code
//   - pgx.ErrNoRows / sql.ErrNoRows: 404
//   - anything else: 500 without details
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	switch {
	case errors.Is(err, crud.ErrNotFound):
		return errs.NewNotFoundError(capitalize(err.Error()), true, nil)
	case errors.Is(err, crud.ErrUnknownModel),
		errors.Is(err, crud.ErrUnknownField),
		errors.Is(err, crud.ErrInvalidArgs),
		errors.Is(err, crud.ErrUnsupportedOperation):
		return errs.NewBadRequestError(err.Error(), true, nil, nil)
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return fromPgError(ConvertPgError(pgerr))
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return noRows(err)
	}

	return errs.NewInternalServerError()
}

// problems lists the errors a client can fix, by the code suffix they get.
var problems = map[Code]string{
	ForeignKeyViolation: "NOT_FOUND",
	UniqueViolation:     "ALREADY_EXISTS",
	NotNullViolation:    "REQUIRED",
	CheckViolation:      "INVALID",
	InvalidText:         "INVALID",
}

func fromPgError(e *Error) error {
	problem, ok := problems[e.Code]
	if !ok {
		return errs.NewInternalServerError()
	}

	table := e.TableName
	if table == "" {
		table = "record"
	}
	code := strings.ToUpper(singular(table)) + "_" + problem
	entity := entityName(e.TableName, e.ColumnName)
	field := humanize(e.ColumnName)

	switch e.Code {
	case ForeignKeyViolation:
		return errs.NewBadRequestError(fmt.Sprintf("The referenced %s does not exist", entity), false, &code, nil)

	case UniqueViolation:
		subject := "identifier"
		if column := uniqueColumn(e.ConstraintName); column != "" {
			subject = humanize(column)
		}
		return errs.NewBadRequestError(fmt.Sprintf("A %s with this %s already exists", entity, subject), true, &code, nil)

	case NotNullViolation:
		if field == "" {
			field = "field"
		}
		fieldErrors := []errs.FieldError{{Field: strings.ToLower(e.ColumnName), Error: "is required"}}
		return errs.NewBadRequestError(fmt.Sprintf("The %s is required", field), true, &code, fieldErrors)

	case CheckViolation:
		message := "One or more values do not meet required conditions"
		if field != "" {
			message = fmt.Sprintf("The %s value does not meet required conditions", field)
		}
		return errs.NewBadRequestError(message, true, &code, nil)

	default:
		return errs.NewBadRequestError("One or more values have an invalid format", true, &code, nil)
	}
}

// noRows names the table when the error carries a "table:<name>:" tag.
func noRows(err error) error {
	const tag = "table:"

	msg := err.Error()
	if i := strings.Index(msg, tag); i >= 0 {
		table, _, _ := strings.Cut(msg[i+len(tag):], ":")
		return errs.NewNotFoundError(entityName(table, "")+" not found", true, nil)
	}
	return errs.NewNotFoundError("Resource not found", false, nil)
}

// entityName prefers the target of an "<x>_id" column, then the table.
func entityName(table, column string) string {
	column = strings.ToLower(column)
	if entity, ok := strings.CutSuffix(column, "_id"); ok && entity != "" {
		return humanize(entity)
	}
	if table != "" {
		return humanize(singular(table))
	}
	return "record"
}

// singular drops one trailing "s" or "S".
func singular(word string) string {
	if len(word) > 1 && (strings.HasSuffix(word, "s") || strings.HasSuffix(word, "S")) {
		return word[:len(word)-1]
	}
	return word
}

// humanize turns "first_name" into "First Name".
func humanize(text string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

var keyConstraintRe = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// uniqueColumn guesses the column of a unique constraint named
// "unique_<table>_<column>" or "<table>_<column>_key".
func uniqueColumn(constraint string) string {
	if rest, ok := strings.CutPrefix(constraint, "unique_"); ok {
		if i := strings.LastIndex(rest, "_"); i >= 0 {
			return rest[i+1:]
		}
	}
	if m := keyConstraintRe.FindStringSubmatch(constraint); len(m) > 1 {
		return m[1]
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
