package apperrors

import "errors"

var (
	ErrMissingRequiredValue = errors.New("missing required value")
	ErrValidation           = errors.New("validation failed")
	ErrConflictingModes     = errors.New("conflicting modes")
	ErrConflictingFilters   = errors.New("models and tags filters are mutually exclusive")
	ErrEmptyFilter          = errors.New("filter must not be empty")
	ErrUnitLoad             = errors.New("unit load failed")
)
