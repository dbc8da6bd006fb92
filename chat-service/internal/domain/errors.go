package domain

import "errors"

// Error kinds. Match with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence error")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// Error is a classified failure. Message is safe to show to clients; Cause
// is kept for logs only.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func NewValidationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func NewNotFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NewAuthError(msg string, cause error) error {
	return &Error{Kind: ErrUnauthorized, Message: msg, Cause: cause}
}

func NewPersistenceError(msg string, cause error) error {
	return &Error{Kind: ErrPersistence, Message: msg, Cause: cause}
}

func NewForbiddenError(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func NewConflictError(msg string, cause error) error {
	return &Error{Kind: ErrConflict, Message: msg, Cause: cause}
}

// PublicMessage returns the client-facing text for err. Unclassified and
// persistence errors collapse to a generic message.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && !errors.Is(de.Kind, ErrPersistence) {
		return de.Message
	}
	return "internal server error"
}
