package backend

import (
	"context"

	"github.com/ecohydro/labenv/internal/envfile"
)

// Conda adapts the conda channel-based solver. Activity means CONDA_PREFIX
// points at an activated environment.
type Conda struct {
	runner CommandRunner
}

func (c *Conda) Tool() envfile.Tool {
	return envfile.ToolConda
}

func (c *Conda) Installed() bool {
	return installed(c.runner, "conda")
}

func (c *Conda) Active(snap Snapshot) bool {
	return snap.CondaPrefix != ""
}

func (c *Conda) List(ctx context.Context, snap Snapshot) ([]Package, error) {
	if !c.Active(snap) {
		return nil, ErrInactive
	}
	return listJSON(ctx, c.runner, envfile.ToolConda, "conda", "list", "--json")
}

func (c *Conda) Install(ctx context.Context, snap Snapshot, name, version string) error {
	spec := name
	if version != "" {
		// conda pins with a single = between name and version.
		spec = name + "=" + version
	}
	return install(ctx, c.runner, envfile.ToolConda, "conda", "install", "--yes", spec)
}
