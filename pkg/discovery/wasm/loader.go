// Package wasm loads units of work compiled to WebAssembly.
//
// A module must export an "execute" function. It may export a "model" function
// returning YAML or JSON metadata such as {"tags": ["finance"]}. The unit's
// LoadContext is passed to the module as plugin config under the keys root,
// parent and name.
package wasm

import (
	"context"
	"fmt"

	extism "github.com/extism/go-sdk"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/discovery"
)

const (
	// Extension is the file extension handled by Loader.
	Extension = ".wasm"

	executeExport = "execute"
	modelExport   = "model"
)

// Loader implements discovery.Loader for .wasm files.
type Loader struct {
	logger *zap.Logger
	wasi   bool
}

// NewLoader creates a Loader. WASI is enabled for every plugin.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger.Named("wasm"),
		wasi:   true,
	}
}

// Option returns a discovery option registering l for .wasm files.
func (l *Loader) Option() discovery.Option {
	return discovery.WithLoader(Extension, l)
}

// Load instantiates the module once to check its exports and read its tags.
// The plugin is closed before Load returns; every execution instantiates a
// fresh one.
func (l *Loader) Load(ctx context.Context, lc discovery.LoadContext, path string) (discovery.Unit, error) {
	plugin, err := l.instantiate(ctx, lc, path)
	if err != nil {
		return discovery.Unit{}, err
	}
	defer plugin.CloseWithContext(ctx)

	if !plugin.FunctionExists(executeExport) {
		return discovery.Unit{}, fmt.Errorf("module does not export %q", executeExport)
	}

	unit := discovery.Unit{
		Name: lc.Name,
		Path: path,
	}
	if plugin.FunctionExists(modelExport) {
		tags, err := readTags(ctx, plugin)
		if err != nil {
			return discovery.Unit{}, err
		}
		unit.Tags = tags
	}

	unit.Execute = func(ctx context.Context) error {
		return l.execute(ctx, lc, path)
	}
	return unit, nil
}

func (l *Loader) instantiate(ctx context.Context, lc discovery.LoadContext, path string) (*extism.Plugin, error) {
	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: path},
		},
		Config: map[string]string{
			"root":   lc.Root,
			"parent": lc.Parent,
			"name":   lc.Name,
		},
	}
	plugin, err := extism.NewPlugin(ctx, manifest, extism.PluginConfig{EnableWasi: l.wasi}, []extism.HostFunction{})
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	return plugin, nil
}

func (l *Loader) execute(ctx context.Context, lc discovery.LoadContext, path string) error {
	plugin, err := l.instantiate(ctx, lc, path)
	if err != nil {
		return err
	}
	defer plugin.CloseWithContext(ctx)

	exit, out, err := plugin.CallWithContext(ctx, executeExport, nil)
	if err != nil {
		return fmt.Errorf("unit %s failed: %w", lc.Name, err)
	}
	if exit != 0 {
		return fmt.Errorf("unit %s exited with code %d", lc.Name, exit)
	}
	if len(out) > 0 {
		l.logger.Debug("unit output", zap.String("unit", lc.Name), zap.ByteString("output", out))
	}
	return nil
}

func readTags(ctx context.Context, plugin *extism.Plugin) ([]string, error) {
	exit, out, err := plugin.CallWithContext(ctx, modelExport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %q: %w", modelExport, err)
	}
	if exit != 0 {
		return nil, fmt.Errorf("%q exited with code %d", modelExport, exit)
	}

	var meta discovery.ModelMetadata
	if err := yaml.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("invalid %q output: %w", modelExport, err)
	}
	return meta.Tags, nil
}
