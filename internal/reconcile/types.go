package reconcile

import (
	"errors"

	"github.com/ecohydro/labenv/internal/backend"
)

// Common errors.
var (
	// ErrEnvironmentInactive guards against syncing outside an activated
	// environment, which would silently empty the package map.
	ErrEnvironmentInactive = errors.New("no active environment to sync from")

	// ErrPackageNotFound is returned by documentation mode when the target
	// package is neither recorded nor observed.
	ErrPackageNotFound = errors.New("package not found")
)

// Change is a version transition for one package.
type Change struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Result describes one sync run. All slices are sorted by package name.
type Result struct {
	// RunID correlates log lines and reports for this run.
	RunID string `json:"run_id"`

	// Added lists observed packages absent from the record.
	Added []backend.Package `json:"added"`

	// Removed lists recorded packages no longer observed, with the
	// version they were recorded at.
	Removed []backend.Package `json:"removed"`

	// Changed lists packages present in both whose versions differ.
	Changed []Change `json:"changed"`
}

// Empty reports whether the sync found no drift.
func (r *Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}
