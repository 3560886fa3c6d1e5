package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	var nilErr *ValidationError
	assert.False(t, nilErr.HasErrors())
	assert.Nil(t, (&ValidationError{}).errOrNil())

	v := NewValidationError("title", "title is required")
	v.add("end_time", "end_time is required")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "title is required; end_time is required", v.Error())
	assert.Equal(t, []FieldError{
		{Field: "title", Message: "title is required"},
		{Field: "end_time", Message: "end_time is required"},
	}, v.Problems)
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"":                    nil,
		"invalid_credentials": ErrInvalidCredentials,
		"unauthorized":        ErrUnauthorized,
		"not_found":           fmt.Errorf("event 3: %w", ErrNotFound),
		"forbidden":           ErrForbidden,
		"payload_too_large":   &PayloadTooLargeError{Size: 10, Limit: 5},
		"persistence":         fmt.Errorf("%w: locked", ErrPersistence),
		"validation":          NewValidationError("title", "title is required"),
		"unexpected":          errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, ErrorKind(err))
	}
}
