package reconcile

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
)

// fakeAdapter serves scripted observations.
type fakeAdapter struct {
	tool     envfile.Tool
	packages []backend.Package
	listErr  error
}

func (f *fakeAdapter) Tool() envfile.Tool          { return f.tool }
func (f *fakeAdapter) Installed() bool             { return true }
func (f *fakeAdapter) Active(backend.Snapshot) bool { return f.listErr == nil }

func (f *fakeAdapter) List(context.Context, backend.Snapshot) ([]backend.Package, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.packages, nil
}

func (f *fakeAdapter) Install(context.Context, backend.Snapshot, string, string) error {
	return nil
}

func newTestRecord(t *testing.T, dir string) *envfile.Record {
	t.Helper()
	rec, err := envfile.Create(dir, envfile.ToolUV, "3.11", "streamflow", false)
	require.NoError(t, err)
	return rec
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine("", zap.NewNop())
	require.Error(t, err)

	eng, err := NewEngine(t.TempDir(), nil)
	require.NoError(t, err)
	require.NotNil(t, eng)
}

func TestSync_AddedChangedRemoved(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)
	rec.Packages["numpy"] = "1.24.0"
	require.NoError(t, envfile.Save(dir, rec))

	adapter := &fakeAdapter{tool: envfile.ToolUV, packages: []backend.Package{
		{Name: "numpy", Version: "1.26.0"},
		{Name: "pandas", Version: "2.0.0"},
	}}

	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	result, err := eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []backend.Package{{Name: "pandas", Version: "2.0.0"}}, result.Added)
	assert.Equal(t, []Change{{Name: "numpy", From: "1.24.0", To: "1.26.0"}}, result.Changed)
	assert.Empty(t, result.Removed)

	loaded, err := envfile.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"numpy": "1.26.0", "pandas": "2.0.0"}, loaded.Packages)
}

func TestSync_RemovesMissingPackages(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)
	rec.Packages["scipy"] = "1.11.0"
	rec.Packages["statsmodels"] = "0.14.0"
	require.NoError(t, envfile.Save(dir, rec))

	adapter := &fakeAdapter{tool: envfile.ToolUV, packages: []backend.Package{
		{Name: "scipy", Version: "1.11.0"},
	}}

	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	result, err := eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, []backend.Package{{Name: "statsmodels", Version: "0.14.0"}}, result.Removed)

	loaded, err := envfile.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"scipy": "1.11.0"}, loaded.Packages)
}

func TestSync_Idempotent(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)

	adapter := &fakeAdapter{tool: envfile.ToolUV, packages: []backend.Package{
		{Name: "numpy", Version: "1.26.0"},
		{Name: "pandas", Version: "2.0.0"},
	}}

	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	first, err := eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	require.NoError(t, err)
	require.False(t, first.Empty())

	second, err := eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	require.NoError(t, err)
	assert.True(t, second.Empty())
}

func TestSync_PreservesNotes(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)
	rec.Packages["xarray"] = "2024.1.0"
	rec.Notes["xarray"] = "netCDF handling"
	rec.Notes["basemap"] = "retired mapping library, kept for methods history"
	require.NoError(t, envfile.Save(dir, rec))

	// xarray disappears from the live environment.
	adapter := &fakeAdapter{tool: envfile.ToolUV, packages: []backend.Package{
		{Name: "numpy", Version: "1.26.0"},
	}}

	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	_, err = eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	require.NoError(t, err)

	loaded, err := envfile.Load(dir)
	require.NoError(t, err)
	assert.NotContains(t, loaded.Packages, "xarray")
	assert.Equal(t, "netCDF handling", loaded.Notes["xarray"])
	assert.Equal(t, "retired mapping library, kept for methods history", loaded.Notes["basemap"])
}

func TestSync_InactiveFailsWithoutModifying(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)
	rec.Packages["numpy"] = "1.26.0"
	require.NoError(t, envfile.Save(dir, rec))

	before, err := os.ReadFile(envfile.Path(dir))
	require.NoError(t, err)

	adapter := &fakeAdapter{tool: envfile.ToolUV, listErr: backend.ErrInactive}
	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	require.ErrorIs(t, err, ErrEnvironmentInactive)

	after, err := os.ReadFile(envfile.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSync_ProbeFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)

	probeErr := &backend.ProbeError{Tool: envfile.ToolUV, Cmd: "uv pip list", Err: errors.New("exit status 1")}
	adapter := &fakeAdapter{tool: envfile.ToolUV, listErr: probeErr}

	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = eng.Sync(context.Background(), rec, adapter, backend.Snapshot{})
	var got *backend.ProbeError
	require.ErrorAs(t, err, &got)
}

func TestDocument(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)
	rec.Packages["numpy"] = "1.26.0"
	require.NoError(t, envfile.Save(dir, rec))

	adapter := &fakeAdapter{tool: envfile.ToolUV, listErr: backend.ErrInactive}
	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, eng.Document(context.Background(), rec, adapter, backend.Snapshot{}, "numpy", "used for array math"))

	loaded, err := envfile.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "used for array math", loaded.Notes["numpy"])
}

func TestDocument_LeavesPackagesByteIdentical(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)
	rec.Packages["numpy"] = "1.26.0"
	rec.Packages["pandas"] = "2.0.0"
	require.NoError(t, envfile.Save(dir, rec))

	before, err := os.ReadFile(envfile.Path(dir))
	require.NoError(t, err)

	adapter := &fakeAdapter{tool: envfile.ToolUV, listErr: backend.ErrInactive}
	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, eng.Document(context.Background(), rec, adapter, backend.Snapshot{}, "numpy", "used for array math"))

	after, err := os.ReadFile(envfile.Path(dir))
	require.NoError(t, err)

	packagesSection := func(data []byte) string {
		s := string(data)
		start := indexOf(t, s, "[packages]")
		end := indexOf(t, s, "[notes]")
		return s[start:end]
	}
	assert.Equal(t, packagesSection(before), packagesSection(after))
}

func TestDocument_AcceptsLiveUnsyncedPackage(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)

	adapter := &fakeAdapter{tool: envfile.ToolUV, packages: []backend.Package{
		{Name: "rasterio", Version: "1.3.9"},
	}}
	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, eng.Document(context.Background(), rec, adapter, backend.Snapshot{}, "Rasterio", "GeoTIFF I/O"))

	loaded, err := envfile.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "GeoTIFF I/O", loaded.Notes["rasterio"])
	assert.Empty(t, loaded.Packages)
}

func TestDocument_PackageNotFound(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecord(t, dir)

	adapter := &fakeAdapter{tool: envfile.ToolUV}
	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)

	err = eng.Document(context.Background(), rec, adapter, backend.Snapshot{}, "notapackage", "note")
	require.ErrorIs(t, err, ErrPackageNotFound)
}

func indexOf(t *testing.T, s, substr string) int {
	t.Helper()
	idx := strings.Index(s, substr)
	require.GreaterOrEqual(t, idx, 0, "expected %q in record file", substr)
	return idx
}
