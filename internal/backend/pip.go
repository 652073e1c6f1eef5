package backend

import (
	"context"

	"github.com/ecohydro/labenv/internal/envfile"
)

// Pip adapts a plain virtualenv managed with pip. Activity means VIRTUAL_ENV
// is set and the venv was not created by uv.
type Pip struct {
	runner CommandRunner
}

func (p *Pip) Tool() envfile.Tool {
	return envfile.ToolPip
}

func (p *Pip) Installed() bool {
	return installed(p.runner, "pip")
}

func (p *Pip) Active(snap Snapshot) bool {
	return snap.VirtualEnv != "" && !snap.UVManaged
}

func (p *Pip) List(ctx context.Context, snap Snapshot) ([]Package, error) {
	if !p.Active(snap) {
		return nil, ErrInactive
	}
	return listJSON(ctx, p.runner, envfile.ToolPip,
		"pip", "list", "--format", "json", "--disable-pip-version-check")
}

func (p *Pip) Install(ctx context.Context, snap Snapshot, name, version string) error {
	return install(ctx, p.runner, envfile.ToolPip,
		"pip", "install", "--disable-pip-version-check", pinEquals(name, version))
}
