package envfile

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ecohydro/labenv/internal/normalize"
)

// Common errors.
var (
	ErrNotFound      = errors.New("environment record not found")
	ErrCorrupt       = errors.New("environment record is corrupt")
	ErrAlreadyExists = errors.New("environment record already exists")

	ErrEmptyName     = errors.New("environment name cannot be empty")
	ErrInvalidTool   = errors.New("unknown environment tool")
	ErrInvalidPython = errors.New("invalid python version")
)

// Tool identifies which package manager owns an environment.
type Tool string

const (
	// ToolUV is the uv binary-cache manager.
	ToolUV Tool = "uv"
	// ToolConda is the conda channel-based solver.
	ToolConda Tool = "conda"
	// ToolPip is a plain venv managed with pip.
	ToolPip Tool = "pip"
)

// Tools lists every supported tool. Dispatch over tools is a closed set:
// adding a backend means extending this list and every switch over it.
var Tools = []Tool{ToolUV, ToolConda, ToolPip}

// ParseTool converts a string to a Tool.
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolUV, ToolConda, ToolPip:
		return Tool(s), nil
	}
	return "", fmt.Errorf("%w: %q (expected uv, conda, or pip)", ErrInvalidTool, s)
}

// pythonVersionRE matches major.minor with an optional patch component.
var pythonVersionRE = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// Record is the persisted environment configuration.
type Record struct {
	// Tool is set once at creation and only changed by re-initialization.
	Tool Tool

	// Python is the interpreter version, major.minor (patch optional).
	Python string

	// Name is the environment name, immutable after creation.
	Name string

	// Packages maps normalized package name to version string.
	Packages map[string]string

	// Notes maps normalized package name to a free-text usage note.
	// Keys need not be a subset of Packages.
	Notes map[string]string

	// envExtras holds unrecognized keys inside [environment],
	// rootExtras unrecognized top-level keys and sections. Both are
	// re-emitted on save for forward compatibility.
	envExtras  map[string]any
	rootExtras map[string]any
}

// NewRecord creates a validated record with empty package and note maps.
func NewRecord(tool Tool, python, name string) (*Record, error) {
	r := &Record{
		Tool:     tool,
		Python:   python,
		Name:     name,
		Packages: map[string]string{},
		Notes:    map[string]string{},
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the record invariants.
func (r *Record) Validate() error {
	if _, err := ParseTool(string(r.Tool)); err != nil {
		return err
	}
	if !pythonVersionRE.MatchString(r.Python) {
		return fmt.Errorf("%w: %q (expected major.minor)", ErrInvalidPython, r.Python)
	}
	if r.Name == "" {
		return ErrEmptyName
	}
	for name := range r.Packages {
		if normalize.Name(name) != name {
			return fmt.Errorf("%w: package key %q is not normalized", ErrCorrupt, name)
		}
	}
	for name := range r.Notes {
		if normalize.Name(name) != name {
			return fmt.Errorf("%w: note key %q is not normalized", ErrCorrupt, name)
		}
	}
	return nil
}

// HasPackage reports whether the record tracks the named package,
// normalizing the name first.
func (r *Record) HasPackage(name string) bool {
	_, ok := r.Packages[normalize.Name(name)]
	return ok
}

// SetNote writes a usage note for the named package, normalizing the key.
func (r *Record) SetNote(name, note string) {
	if r.Notes == nil {
		r.Notes = map[string]string{}
	}
	r.Notes[normalize.Name(name)] = note
}
