package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-jobenv/pkg/apperrors"
)

var executed []string

func init() {
	for _, name := range []string{"orders", "customers", "inventory", "shared_refresh"} {
		name := name
		Register(name, func(ctx context.Context) error {
			u, _ := UnitFromContext(ctx)
			executed = append(executed, name+":"+u.Name)
			return nil
		})
	}
	Register("failing", func(context.Context) error {
		return errors.New("refresh failed")
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupUnits creates two units: orders tagged finance and customers untagged.
func setupUnits(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", "model:\n  tags: [finance, daily]\n")
	writeFile(t, dir, "customers.yml", "execute: customers\n")
	return dir
}

func unitNames(units []Unit) []string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return names
}

func TestDiscover_NoFilter(t *testing.T) {
	dir := setupUnits(t)

	funcs, err := Discover(context.Background(), dir, Filter{})
	require.NoError(t, err)
	assert.Len(t, funcs, 2)
}

func TestUnits_LexicalOrder(t *testing.T) {
	dir := setupUnits(t)

	units, err := New(nil).Units(context.Background(), dir, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, unitNames(units))
	assert.Equal(t, []string{"finance", "daily"}, units[1].Tags)
	assert.Empty(t, units[0].Tags)
	assert.Equal(t, filepath.Join(dir, "orders.yaml"), units[1].Path)
}

func TestUnits_TagFilter(t *testing.T) {
	dir := setupUnits(t)

	units, err := New(nil).Units(context.Background(), dir, Filter{Tags: []string{"finance"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, unitNames(units))

	units, err = New(nil).Units(context.Background(), dir, Filter{Tags: []string{"marketing"}})
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestUnits_ModelFilter(t *testing.T) {
	dir := setupUnits(t)

	units, err := New(nil).Units(context.Background(), dir, Filter{Models: []string{"customers", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"customers"}, unitNames(units))
}

func TestUnits_FilterErrorsBeforeIO(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	tests := []struct {
		name    string
		filter  Filter
		wantErr error
	}{
		{"both filters", Filter{Models: []string{"orders"}, Tags: []string{"finance"}}, apperrors.ErrConflictingFilters},
		{"empty models", Filter{Models: []string{}}, apperrors.ErrEmptyFilter},
		{"empty tags", Filter{Tags: []string{}}, apperrors.ErrEmptyFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The folder does not exist, so any I/O would fail with a different error.
			_, err := Discover(context.Background(), missing, tt.filter)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUnits_MissingFolder(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnits_RecursiveAndSkipped(t *testing.T) {
	dir := setupUnits(t)
	writeFile(t, dir, "nested/inventory.yaml", "model:\n  tags: [ops]\n")
	writeFile(t, dir, "_drafts/failing.yaml", "")
	writeFile(t, dir, ".hidden/failing.yaml", "")
	writeFile(t, dir, "_private.yaml", "execute: failing\n")
	writeFile(t, dir, "README.md", "# units\n")

	units, err := New(nil).Units(context.Background(), dir, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "inventory", "orders"}, unitNames(units))
}

func TestUnits_LoadFailureAbortsScan(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown handler", "execute: not_registered\n"},
		{"unknown field", "execute: orders\nschedule: hourly\n"},
		{"malformed yaml", "model: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupUnits(t)
			writeFile(t, dir, "broken.yaml", tt.content)

			funcs, err := Discover(context.Background(), dir, Filter{})
			require.Error(t, err)
			assert.Nil(t, funcs)
			assert.ErrorIs(t, err, apperrors.ErrUnitLoad)
			assert.Contains(t, err.Error(), "broken.yaml")
		})
	}
}

func TestUnits_ExecuteDefaultsToUnitName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inventory.yaml", "")

	executed = nil
	funcs, err := Discover(context.Background(), dir, Filter{})
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	require.NoError(t, funcs[0](context.Background()))
	assert.Equal(t, []string{"inventory:inventory"}, executed)
}

func TestUnits_SharedHandler(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "eu.yaml", "execute: shared_refresh\n")
	writeFile(t, dir, "us.yaml", "execute: shared_refresh\n")

	executed = nil
	funcs, err := Discover(context.Background(), dir, Filter{})
	require.NoError(t, err)
	for _, fn := range funcs {
		require.NoError(t, fn(context.Background()))
	}
	assert.Equal(t, []string{"shared_refresh:eu", "shared_refresh:us"}, executed)
}

func TestUnits_ExecuteError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yml", "")

	funcs, err := Discover(context.Background(), dir, Filter{})
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	assert.EqualError(t, funcs[0](context.Background()), "refresh failed")
}

func TestUnits_CustomLoader(t *testing.T) {
	dir := setupUnits(t)
	writeFile(t, dir, "report.sql", "select 1")

	var seen []LoadContext
	loader := LoaderFunc(func(ctx context.Context, lc LoadContext, path string) (Unit, error) {
		seen = append(seen, lc)
		return Unit{Tags: []string{"finance"}, Execute: func(context.Context) error { return nil }}, nil
	})

	core, recorded := observer.New(zapcore.DebugLevel)
	d := New(zap.New(core), WithLoader("SQL", loader))

	units, err := d.Units(context.Background(), dir, Filter{Tags: []string{"finance"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "report"}, unitNames(units))
	assert.Equal(t, filepath.Join(dir, "report.sql"), units[1].Path)

	require.Len(t, seen, 1)
	root, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, LoadContext{Root: root, Parent: filepath.Dir(root), Name: "report"}, seen[0])

	assert.Equal(t, 2, recorded.FilterMessage("unit discovered").Len())
	assert.Equal(t, 1, recorded.FilterMessage("unit excluded by filter").Len())
}

func TestUnits_LoaderWithoutExecute(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.txt", "")

	d := New(nil, WithLoader(".txt", LoaderFunc(func(context.Context, LoadContext, string) (Unit, error) {
		return Unit{}, nil
	})))
	_, err := d.Units(context.Background(), dir, Filter{})
	assert.ErrorIs(t, err, apperrors.ErrUnitLoad)
}

func TestUnits_CanceledContext(t *testing.T) {
	dir := setupUnits(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Units(ctx, dir, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	_, ok := Lookup("never_registered")
	assert.False(t, ok)

	fn, ok := Lookup("orders")
	require.True(t, ok)
	assert.NotNil(t, fn)

	names := Registered()
	assert.Contains(t, names, "orders")
	assert.IsIncreasing(t, names)
}
