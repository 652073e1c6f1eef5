package backend

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecohydro/labenv/internal/envfile"
)

// fakeRunner scripts command results per binary name.
type fakeRunner struct {
	installed map[string]bool
	stdout    map[string]string
	stderr    map[string]string
	runErr    map[string]error
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		installed: map[string]bool{},
		stdout:    map[string]string{},
		stderr:    map[string]string{},
		runErr:    map[string]error{},
	}
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", exec.ErrNotFound
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	if err := f.runErr[name]; err != nil {
		return nil, []byte(f.stderr[name]), err
	}
	return []byte(f.stdout[name]), []byte(f.stderr[name]), nil
}

func uvSnapshot() Snapshot {
	return Snapshot{VirtualEnv: "/proj/.venv", UVManaged: true, Python: "3.11.4"}
}

func TestFor_ClosedDispatch(t *testing.T) {
	runner := newFakeRunner()
	for _, tool := range envfile.Tools {
		a, err := For(tool, runner)
		require.NoError(t, err)
		assert.Equal(t, tool, a.Tool())
	}

	_, err := For(envfile.Tool("poetry"), runner)
	require.Error(t, err)
}

func TestAll(t *testing.T) {
	adapters := All(newFakeRunner())
	require.Len(t, adapters, 3)
	assert.Equal(t, envfile.ToolUV, adapters[0].Tool())
}

func TestInstalled_MissingBinaryDegrades(t *testing.T) {
	runner := newFakeRunner()
	runner.installed["uv"] = true

	uv, conda := &UV{runner: runner}, &Conda{runner: runner}
	assert.True(t, uv.Installed())
	assert.False(t, conda.Installed())
}

func TestActive(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		uv     bool
		conda  bool
		pip    bool
	}{
		{
			name: "nothing active",
			snap: Snapshot{},
		},
		{
			name: "uv venv",
			snap: Snapshot{VirtualEnv: "/p/.venv", UVManaged: true},
			uv:   true,
		},
		{
			name: "plain venv",
			snap: Snapshot{VirtualEnv: "/p/.venv"},
			pip:  true,
		},
		{
			name:  "conda env",
			snap:  Snapshot{CondaPrefix: "/opt/conda/envs/soils", CondaDefaultEnv: "soils"},
			conda: true,
		},
		{
			name:  "conda and venv both present",
			snap:  Snapshot{CondaPrefix: "/opt/conda", VirtualEnv: "/p/.venv"},
			conda: true,
			pip:   true,
		},
	}

	runner := newFakeRunner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.uv, (&UV{runner: runner}).Active(tt.snap), "uv")
			assert.Equal(t, tt.conda, (&Conda{runner: runner}).Active(tt.snap), "conda")
			assert.Equal(t, tt.pip, (&Pip{runner: runner}).Active(tt.snap), "pip")
		})
	}
}

func TestList_Inactive(t *testing.T) {
	uv := &UV{runner: newFakeRunner()}
	_, err := uv.List(context.Background(), Snapshot{})
	require.ErrorIs(t, err, ErrInactive)
}

func TestList_ParsesAndNormalizes(t *testing.T) {
	runner := newFakeRunner()
	runner.stdout["uv"] = `[{"name": "NumPy", "version": "1.26.0"}, {"name": "ruamel.yaml", "version": "0.18.5"}]`

	uv := &UV{runner: runner}
	packages, err := uv.List(context.Background(), uvSnapshot())
	require.NoError(t, err)

	require.Equal(t, []Package{
		{Name: "numpy", Version: "1.26.0"},
		{Name: "ruamel-yaml", Version: "0.18.5"},
	}, packages)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "uv pip list --format json", runner.calls[0])
}

func TestList_CondaCommandShape(t *testing.T) {
	runner := newFakeRunner()
	runner.stdout["conda"] = `[{"name": "scipy", "version": "1.11.0", "channel": "conda-forge"}]`

	conda := &Conda{runner: runner}
	packages, err := conda.List(context.Background(), Snapshot{CondaPrefix: "/opt/conda/envs/x"})
	require.NoError(t, err)
	assert.Equal(t, []Package{{Name: "scipy", Version: "1.11.0"}}, packages)
	assert.Equal(t, "conda list --json", runner.calls[0])
}

func TestList_ProbeFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.runErr["pip"] = errors.New("exit status 2")
	runner.stderr["pip"] = "some pip crash"

	pip := &Pip{runner: runner}
	_, err := pip.List(context.Background(), Snapshot{VirtualEnv: "/p/.venv"})

	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Equal(t, envfile.ToolPip, probeErr.Tool)
	assert.Contains(t, probeErr.Error(), "some pip crash")
}

func TestList_MalformedOutput(t *testing.T) {
	runner := newFakeRunner()
	runner.stdout["uv"] = "warning: not json"

	uv := &UV{runner: runner}
	_, err := uv.List(context.Background(), uvSnapshot())

	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
}

func TestList_MissingBinaryIsProbeError(t *testing.T) {
	runner := newFakeRunner()
	runner.runErr["uv"] = exec.ErrNotFound

	uv := &UV{runner: runner}
	_, err := uv.List(context.Background(), uvSnapshot())
	require.ErrorIs(t, err, exec.ErrNotFound)
}

func TestInstall_CommandShapes(t *testing.T) {
	tests := []struct {
		name    string
		tool    envfile.Tool
		version string
		want    string
	}{
		{"uv pinned", envfile.ToolUV, "2.0.0", "uv pip install pandas==2.0.0"},
		{"uv unpinned", envfile.ToolUV, "", "uv pip install pandas"},
		{"conda pinned", envfile.ToolConda, "2.0.0", "conda install --yes pandas=2.0.0"},
		{"pip pinned", envfile.ToolPip, "2.0.0", "pip install --disable-pip-version-check pandas==2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			a, err := For(tt.tool, runner)
			require.NoError(t, err)

			require.NoError(t, a.Install(context.Background(), uvSnapshot(), "pandas", tt.version))
			require.Len(t, runner.calls, 1)
			assert.Equal(t, tt.want, runner.calls[0])
		})
	}
}
