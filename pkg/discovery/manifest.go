package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the content of a YAML unit file:
//
//	execute: refresh_orders
//	model:
//	  tags: [finance, daily]
//
// Execute names a handler added with Register and defaults to the unit name.
type Manifest struct {
	Execute string         `yaml:"execute"`
	Model   *ModelMetadata `yaml:"model"`
}

// ModelMetadata is the optional metadata a unit declares.
type ModelMetadata struct {
	Tags []string `yaml:"tags"`
}

// ManifestLoader loads YAML manifests and binds them to registered handlers.
type ManifestLoader struct{}

func (ManifestLoader) Load(ctx context.Context, lc LoadContext, path string) (Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return Unit{}, err
	}
	defer f.Close()

	var m Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Unit{}, fmt.Errorf("invalid manifest: %w", err)
	}

	handler := m.Execute
	if handler == "" {
		handler = lc.Name
	}
	fn, ok := Lookup(handler)
	if !ok {
		return Unit{}, fmt.Errorf("no execute handler registered as %q", handler)
	}

	unit := Unit{
		Name: lc.Name,
		Path: path,
	}
	if m.Model != nil {
		unit.Tags = m.Model.Tags
	}
	unit.Execute = func(ctx context.Context) error {
		return fn(NewUnitContext(ctx, unit))
	}
	return unit, nil
}

type unitContextKey struct{}

// NewUnitContext returns a copy of ctx carrying the unit being executed.
func NewUnitContext(ctx context.Context, u Unit) context.Context {
	return context.WithValue(ctx, unitContextKey{}, u)
}

// UnitFromContext returns the unit a handler was invoked for.
func UnitFromContext(ctx context.Context) (Unit, bool) {
	u, ok := ctx.Value(unitContextKey{}).(Unit)
	return u, ok
}
