// Package errors defines the sentinel errors shared by the schema, document,
// indexing and search layers, plus an AppError wrapper that carries an HTTP
// status for the service shell.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDuplicateField   = errors.New("duplicate field")
	ErrEmptySchema      = errors.New("schema has no fields")
	ErrInvalidFieldName = errors.New("invalid field name")
	ErrUnknownTokenizer = errors.New("unknown tokenizer")
	ErrUnknownField     = errors.New("unknown field")
	ErrTypeMismatch     = errors.New("field type mismatch")
	ErrSchemaMismatch   = errors.New("document schema does not match index schema")
	ErrInvalidFacetPath = errors.New("invalid facet path")
	ErrFieldType        = errors.New("field has wrong type for this operation")
	ErrDocumentNotFound = errors.New("document not found")
	ErrCommitFailed     = errors.New("commit failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsSchemaError reports whether err stems from building a schema or from
// validating a document against one.
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrDuplicateField) ||
		errors.Is(err, ErrEmptySchema) ||
		errors.Is(err, ErrInvalidFieldName) ||
		errors.Is(err, ErrUnknownTokenizer) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrSchemaMismatch)
}

// IsQueryError reports whether err was raised while turning user input into
// a query or a facet request.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrFieldType) ||
		errors.Is(err, ErrInvalidFacetPath)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case IsSchemaError(err), IsQueryError(err), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCommitFailed), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
