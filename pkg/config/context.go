package config

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/envvar"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the snapshot stored by NewContext.
func FromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(contextKey{}).(*Config)
	return cfg, ok && cfg != nil
}

// WithConfig loads a snapshot through r and calls fn with it, both directly and
// through the context. A load failure is returned without calling fn.
func WithConfig(ctx context.Context, r *envvar.Reader, fn func(ctx context.Context, cfg *Config) error) error {
	cfg, err := Load(r, time.Now())
	if err != nil {
		return err
	}
	return fn(NewContext(ctx, cfg), cfg)
}
