package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/dsn"
)

// ErrUnsupportedScheme is returned when no adapter handles a DSN's protocol.
var ErrUnsupportedScheme = errors.New("unsupported datasource scheme")

// FromDSN converts d with the adapter registered for its protocol and validates
// the result. Nothing is dialed.
func FromDSN(d dsn.DSN) (ConnectionConfig, error) {
	factory := GetFactory(d.Protocol())
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, d.Protocol())
	}

	cfg, err := factory(d.Map())
	if err != nil {
		return nil, fmt.Errorf("invalid %s datasource: %w", d.Protocol(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s datasource: %w", d.Protocol(), err)
	}
	return cfg, nil
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying cfg.
func NewContext(ctx context.Context, cfg ConnectionConfig) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the datasource stored by NewContext.
func FromContext(ctx context.Context) (ConnectionConfig, bool) {
	cfg, ok := ctx.Value(contextKey{}).(ConnectionConfig)
	return cfg, ok
}
