package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is, never by string.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// ErrEngineInit means the stored byte image is unreadable or corrupt.
	// Fatal to the current session; surfaced immediately, never recovered silently.
	ErrEngineInit = errors.New("engine init failed")

	// ErrSchemaCorrupted means required tables or columns are missing.
	// Recoverable via schema.Manager.Repair, which is destructive.
	ErrSchemaCorrupted = errors.New("schema corrupted")

	// ErrInvariant marks a violated data invariant, e.g. deleting the
	// default namespace or finding no default namespace at all.
	ErrInvariant = errors.New("invariant violation")

	// ErrQuery marks malformed SQL or a constraint violation — always a
	// programming error, never swallowed.
	ErrQuery = errors.New("query failed")

	// ErrConnection means the remote backend is unreachable or answered non-2xx.
	ErrConnection = errors.New("connection failed")

	// ErrMigration marks a failed backend migration. Always safely
	// retriable; the active backend is left unchanged.
	ErrMigration = errors.New("migration failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// wrap pairs a sentinel with its cause so errors.Is matches both.
func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func EngineInit(cause error, message string) *AppError {
	return &AppError{Err: wrap(ErrEngineInit, cause), Message: message}
}

func SchemaCorrupted(message string) *AppError {
	return &AppError{Err: ErrSchemaCorrupted, Message: message}
}

func Invariant(message string) *AppError {
	return &AppError{Err: ErrInvariant, Message: message}
}

func Query(cause error, message string) *AppError {
	return &AppError{Err: wrap(ErrQuery, cause), Message: message}
}

func Connection(cause error, message string) *AppError {
	return &AppError{Err: wrap(ErrConnection, cause), Message: message}
}

func Migration(cause error, message string) *AppError {
	return &AppError{Err: wrap(ErrMigration, cause), Message: message}
}
