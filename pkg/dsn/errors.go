package dsn

import "errors"

// ErrInvalidFormat matches every error returned by Parse and New.
var ErrInvalidFormat = errors.New("invalid DSN format")

var (
	ErrProtocolNotFound           = errors.New("protocol not found")
	ErrMissingHostSeparator       = errors.New("no '@' separator between credentials and host")
	ErrMissingCredentialSeparator = errors.New("no ':' separator in credentials")
	ErrInvalidPort                = errors.New("invalid port")
	ErrInvalidProtocol            = errors.New("invalid protocol")
	ErrEmptyHostname              = errors.New("hostname is empty")
	ErrInvalidHostname            = errors.New("invalid hostname")
)

// ParseError wraps the specific reason a DSN was rejected. It never carries the
// raw input, which may hold a password.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return ErrInvalidFormat.Error() + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidFormat, e.Err}
}
