// Package envvar reads typed values from environment variables.
//
// Every accessor distinguishes three outcomes: the variable is unset (or empty),
// the variable holds a valid value, or the variable holds a malformed value.
// Unset variables are reported with ok=false and an informational log entry;
// malformed values fail with a *ValidationError.
//
//	r := envvar.New(logger)
//	enabled, err := envvar.Or(r, "CRON_ENABLED", envvar.ParseBool, false)
//	db, err := envvar.Require(r, "DATABASE_URL", envvar.ParseDSN)
package envvar

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
)

// LookupFunc resolves a variable by name. It has the signature of os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// MapLookup serves variables from a fixed map.
func MapLookup(vars map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// Parser converts a raw, non-empty variable value.
type Parser[T any] func(raw string) (T, error)

// Reader reads variables through a LookupFunc.
type Reader struct {
	lookup   LookupFunc
	logger   *zap.Logger
	location *time.Location
}

// Option configures a Reader.
type Option func(*Reader)

// WithLookup replaces os.LookupEnv as the variable source.
func WithLookup(fn LookupFunc) Option {
	return func(r *Reader) {
		r.lookup = fn
	}
}

// WithLocation sets the location used for ISO8601 values that carry no offset.
// The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(r *Reader) {
		r.location = loc
	}
}

// New creates a Reader. A nil logger disables the unset-variable notices.
func New(logger *zap.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{
		lookup:   os.LookupEnv,
		logger:   logger.Named("envvar"),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup reads name and parses it. ok is false when the variable is unset or
// empty; err is a *ValidationError when the value does not parse.
func Lookup[T any](r *Reader, name string, parse Parser[T]) (value T, ok bool, err error) {
	raw, found := r.lookup(name)
	if !found || raw == "" {
		r.logger.Info("environment variable not set", zap.String("name", name))
		return value, false, nil
	}

	value, err = parse(raw)
	if err != nil {
		var zero T
		return zero, false, &ValidationError{Name: name, Value: raw, Err: err}
	}
	return value, true, nil
}

// Or reads name and falls back to def when it is unset or empty.
func Or[T any](r *Reader, name string, parse Parser[T], def T) (T, error) {
	value, ok, err := Lookup(r, name, parse)
	if err != nil {
		return value, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Require reads name and fails with apperrors.ErrMissingRequiredValue when it is
// unset or empty.
func Require[T any](r *Reader, name string, parse Parser[T]) (T, error) {
	value, ok, err := Lookup(r, name, parse)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, fmt.Errorf("%w: environment variable %s", apperrors.ErrMissingRequiredValue, name)
	}
	return value, nil
}

func (r *Reader) String(name string) (string, bool, error) {
	return Lookup(r, name, ParseString)
}

func (r *Reader) Bool(name string) (bool, bool, error) {
	return Lookup(r, name, ParseBool)
}

func (r *Reader) Int(name string) (int, bool, error) {
	return Lookup(r, name, ParseInt)
}

func (r *Reader) Float(name string) (float64, bool, error) {
	return Lookup(r, name, ParseFloat)
}

// List splits the value on sep and trims every item.
func (r *Reader) List(name, sep string) ([]string, bool, error) {
	return Lookup(r, name, ListOf(sep))
}

func (r *Reader) Timezone(name string) (*time.Location, bool, error) {
	return Lookup(r, name, ParseTimezone)
}

// Cron returns the expression after checking it against the five-field grammar.
func (r *Reader) Cron(name string) (string, bool, error) {
	return Lookup(r, name, ParseCron)
}

// ISO8601 accepts values with or without an offset. Values without one are read
// in the Reader's location.
func (r *Reader) ISO8601(name string) (time.Time, bool, error) {
	return Lookup(r, name, ISO8601In(r.location))
}

// RFC3339 requires an offset or zone designator.
func (r *Reader) RFC3339(name string) (time.Time, bool, error) {
	return Lookup(r, name, ParseRFC3339)
}

func (r *Reader) DSN(name string) (dsn.DSN, bool, error) {
	return Lookup(r, name, ParseDSN)
}
