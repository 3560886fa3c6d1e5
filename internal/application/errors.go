package application

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned when a request carries no valid identity.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrInvalidCredentials is returned when a username/password pair does not match the admin account.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when an operation targets something outside the caller's reach,
	// such as a path that resolves outside the upload directory.
	ErrForbidden = errors.New("application: forbidden")
	// ErrPayloadTooLarge is returned when an upload exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("application: payload too large")
	// ErrPersistence is returned when a backing store is unreachable or a write failed.
	ErrPersistence = errors.New("application: persistence failure")
)

// FieldError is a single violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError accumulates every violated rule of one input.
type ValidationError struct {
	Problems []FieldError
}

// Error joins all messages with "; ".
func (v *ValidationError) Error() string {
	if v == nil || len(v.Problems) == 0 {
		return "validation failed"
	}
	return strings.Join(v.Messages(), "; ")
}

// Messages lists the recorded messages in the order they were found.
func (v *ValidationError) Messages() []string {
	if v == nil {
		return nil
	}
	messages := make([]string, 0, len(v.Problems))
	for _, p := range v.Problems {
		messages = append(messages, p.Message)
	}
	return messages
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Problems) > 0
}

func (v *ValidationError) add(field, message string) {
	v.Problems = append(v.Problems, FieldError{Field: field, Message: message})
}

// errOrNil keeps a typed nil *ValidationError from escaping as a non-nil error.
func (v *ValidationError) errOrNil() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

// NewValidationError builds a ValidationError with a single problem.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
