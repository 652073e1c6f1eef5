package backend

import (
	"context"

	"github.com/ecohydro/labenv/internal/envfile"
)

// UV adapts the uv binary-cache manager. uv reuses the virtualenv layout, so
// activity means VIRTUAL_ENV is set and the venv carries uv's pyvenv.cfg
// marker.
type UV struct {
	runner CommandRunner
}

func (u *UV) Tool() envfile.Tool {
	return envfile.ToolUV
}

func (u *UV) Installed() bool {
	return installed(u.runner, "uv")
}

func (u *UV) Active(snap Snapshot) bool {
	return snap.VirtualEnv != "" && snap.UVManaged
}

func (u *UV) List(ctx context.Context, snap Snapshot) ([]Package, error) {
	if !u.Active(snap) {
		return nil, ErrInactive
	}
	return listJSON(ctx, u.runner, envfile.ToolUV, "uv", "pip", "list", "--format", "json")
}

func (u *UV) Install(ctx context.Context, snap Snapshot, name, version string) error {
	return install(ctx, u.runner, envfile.ToolUV, "uv", "pip", "install", pinEquals(name, version))
}
