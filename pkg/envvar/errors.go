package envvar

import (
	"errors"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/apperrors"
)

var (
	ErrInvalidTimestamp = errors.New("not an ISO 8601 date and time")
	ErrMissingOffset    = errors.New("timezone offset is required")
)

// ValidationError reports a variable whose value could not be parsed.
// Value holds the raw input; Error never includes it because some variables
// carry credentials.
type ValidationError struct {
	Name  string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid value for environment variable " + e.Name + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{apperrors.ErrValidation, e.Err}
}
