package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecohydro/labenv/internal/envfile"
)

// ErrInactive signals that the backend is installed but no environment of its
// kind is currently active. This is a normal state the validation engine
// classifies, not a failure.
var ErrInactive = errors.New("no active environment for this backend")

// Package is one observed (name, version) pair from a live environment.
// The name is normalized; the version string is passed through verbatim.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Adapter is the contract every backend implements.
type Adapter interface {
	// Tool identifies the backend kind.
	Tool() envfile.Tool

	// Installed reports whether the backend binary is on the search path.
	// A missing binary is a normal state, never an error.
	Installed() bool

	// Active reports whether an environment of this backend is active in
	// the given snapshot.
	Active(snap Snapshot) bool

	// List returns the installed packages of the active environment in
	// backend order. Returns ErrInactive when no environment is active and
	// a *ProbeError when the backend invocation itself fails.
	List(ctx context.Context, snap Snapshot) ([]Package, error)

	// Install installs a single package into the active environment.
	// Used only by fix-mode remediation.
	Install(ctx context.Context, snap Snapshot, name, version string) error
}

// ProbeError is an unexpected backend invocation failure, distinct from "not
// installed" and from "inactive". Validation classifies it as status Error.
type ProbeError struct {
	Tool   envfile.Tool
	Cmd    string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("%s probe failed (%s): %v", e.Tool, e.Cmd, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// For returns the adapter for a tool. Dispatch is a closed match over the
// tool enum so a fourth backend is an explicit, exhaustively-checked
// addition.
func For(tool envfile.Tool, runner CommandRunner) (Adapter, error) {
	switch tool {
	case envfile.ToolUV:
		return &UV{runner: runner}, nil
	case envfile.ToolConda:
		return &Conda{runner: runner}, nil
	case envfile.ToolPip:
		return &Pip{runner: runner}, nil
	}
	return nil, fmt.Errorf("no adapter for tool %q", tool)
}

// All returns one adapter per supported tool, in enum order.
func All(runner CommandRunner) []Adapter {
	adapters := make([]Adapter, 0, len(envfile.Tools))
	for _, tool := range envfile.Tools {
		a, err := For(tool, runner)
		if err != nil {
			// Tools and For cover the same closed set.
			panic(err)
		}
		adapters = append(adapters, a)
	}
	return adapters
}
