// Package discovery finds units of work in a directory tree.
//
// Every file with a registered Loader is a unit. The unit name is the file name
// without its extension, and a unit may declare tags. Units are selected by name
// (Filter.Models) or by tag (Filter.Tags), never both.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/apperrors"
)

// ExecuteFunc is the entry point of a unit.
type ExecuteFunc func(ctx context.Context) error

// Unit is a loaded unit of work.
type Unit struct {
	Name    string
	Path    string
	Tags    []string
	Execute ExecuteFunc
}

// LoadContext tells a Loader where a unit was found.
type LoadContext struct {
	// Root is the folder passed to Units.
	Root string
	// Parent is the directory containing Root.
	Parent string
	// Name is the unit name derived from the file name.
	Name string
}

// Loader turns one file into a Unit.
type Loader interface {
	Load(ctx context.Context, lc LoadContext, path string) (Unit, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, lc LoadContext, path string) (Unit, error)

func (f LoaderFunc) Load(ctx context.Context, lc LoadContext, path string) (Unit, error) {
	return f(ctx, lc, path)
}

// Filter selects units. A nil slice means the selector was not supplied; a
// non-nil empty slice is a supplied but empty selector and is rejected.
type Filter struct {
	Models []string
	Tags   []string
}

// Validate checks the filter without touching the filesystem.
func (f Filter) Validate() error {
	if len(f.Models) > 0 && len(f.Tags) > 0 {
		return apperrors.ErrConflictingFilters
	}
	if f.Models != nil && len(f.Models) == 0 {
		return fmt.Errorf("%w: models", apperrors.ErrEmptyFilter)
	}
	if f.Tags != nil && len(f.Tags) == 0 {
		return fmt.Errorf("%w: tags", apperrors.ErrEmptyFilter)
	}
	return nil
}

func (f Filter) includes(u Unit) bool {
	switch {
	case f.Models != nil:
		return contains(f.Models, u.Name)
	case f.Tags != nil:
		for _, tag := range u.Tags {
			if contains(f.Tags, tag) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// Discoverer walks folders and loads units with the loaders registered per file
// extension. It holds no state besides its loaders, so one Discoverer can scan
// several folders concurrently once configured.
type Discoverer struct {
	logger  *zap.Logger
	loaders map[string]Loader
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLoader registers l for files ending in ext.
func WithLoader(ext string, l Loader) Option {
	return func(d *Discoverer) {
		d.RegisterLoader(ext, l)
	}
}

// New creates a Discoverer that understands YAML unit manifests.
func New(logger *zap.Logger, opts ...Option) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Discoverer{
		logger:  logger.Named("discovery"),
		loaders: make(map[string]Loader),
	}
	manifests := ManifestLoader{}
	d.RegisterLoader(".yaml", manifests)
	d.RegisterLoader(".yml", manifests)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterLoader registers l for files ending in ext, replacing any loader
// already registered for it. Extensions are matched case-insensitively.
// It must not be called while a scan is running.
func (d *Discoverer) RegisterLoader(ext string, l Loader) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	d.loaders[strings.ToLower(ext)] = l
}

// Units walks folder recursively in lexical order and returns the units the
// filter selects. Entries whose name starts with "." or "_" are skipped, as are
// files without a loader. The first load failure aborts the scan.
func (d *Discoverer) Units(ctx context.Context, folder string, filter Filter) ([]Unit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", folder, err)
	}
	parent := filepath.Dir(root)

	var units []Unit
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && isHidden(entry.Name()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		ext := filepath.Ext(entry.Name())
		loader, ok := d.loaders[strings.ToLower(ext)]
		if !ok {
			return nil
		}

		lc := LoadContext{
			Root:   root,
			Parent: parent,
			Name:   strings.TrimSuffix(entry.Name(), ext),
		}
		unit, err := loader.Load(ctx, lc, path)
		if err != nil {
			rel, _ := filepath.Rel(root, path)
			return fmt.Errorf("%w: %s: %w", apperrors.ErrUnitLoad, rel, err)
		}
		if unit.Name == "" {
			unit.Name = lc.Name
		}
		if unit.Path == "" {
			unit.Path = path
		}
		if unit.Execute == nil {
			rel, _ := filepath.Rel(root, path)
			return fmt.Errorf("%w: %s: no execute entry point", apperrors.ErrUnitLoad, rel)
		}

		if !filter.includes(unit) {
			d.logger.Debug("unit excluded by filter", zap.String("unit", unit.Name))
			return nil
		}
		d.logger.Debug("unit discovered",
			zap.String("unit", unit.Name),
			zap.String("path", path),
			zap.Strings("tags", unit.Tags))
		units = append(units, unit)
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnitLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan %s: %w", folder, err)
	}
	return units, nil
}

// Discover returns the execute entry points of the selected units, in walk
// order.
func (d *Discoverer) Discover(ctx context.Context, folder string, filter Filter) ([]ExecuteFunc, error) {
	units, err := d.Units(ctx, folder, filter)
	if err != nil {
		return nil, err
	}
	funcs := make([]ExecuteFunc, len(units))
	for i, u := range units {
		funcs[i] = u.Execute
	}
	return funcs, nil
}

// Discover scans folder with a Discoverer that only knows YAML manifests.
func Discover(ctx context.Context, folder string, filter Filter) ([]ExecuteFunc, error) {
	return New(nil).Discover(ctx, folder, filter)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
