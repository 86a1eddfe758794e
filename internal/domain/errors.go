package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrJobUnavailable    = errors.New("job unavailable")
	ErrApprovalRequired  = errors.New("client approval required")
	ErrContractorMissing = errors.New("no contractor assigned")
	ErrValidation        = errors.New("validation failed")
)

// ValidationError reports a single field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
