package report

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/reconcile"
	"github.com/ecohydro/labenv/internal/validate"
)

// environmentJSON identifies the record a machine report is about.
type environmentJSON struct {
	Name   string `json:"name"`
	Tool   string `json:"tool"`
	Python string `json:"python"`
}

// Every machine document carries the same top-level fields: status,
// environment, issues, warnings. Report kinds extend that base, never
// replace it.
type validationJSON struct {
	RunID       string          `json:"run_id"`
	Status      string          `json:"status"`
	ExitCode    int             `json:"exit_code"`
	Environment environmentJSON `json:"environment"`
	Issues      []string        `json:"issues"`
	Warnings    []string        `json:"warnings"`
}

type fixJSON struct {
	Environment   environmentJSON   `json:"environment"`
	Before        validationJSON    `json:"before"`
	After         validationJSON    `json:"after"`
	Installed     []backend.Package `json:"installed"`
	FailedPackage string            `json:"failed_package,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

type syncJSON struct {
	RunID       string             `json:"run_id"`
	Status      string             `json:"status"`
	Environment environmentJSON    `json:"environment"`
	Issues      []string           `json:"issues"`
	Warnings    []string           `json:"warnings"`
	NewPackages []backend.Package  `json:"new_packages"`
	Removed     []backend.Package  `json:"removed"`
	Changed     []reconcile.Change `json:"changed"`
}

type documentJSON struct {
	Status      string          `json:"status"`
	Environment environmentJSON `json:"environment"`
	Issues      []string        `json:"issues"`
	Warnings    []string        `json:"warnings"`
	Package     string          `json:"package"`
	Note        string          `json:"note"`
}

type failureJSON struct {
	Status      string          `json:"status"`
	Environment environmentJSON `json:"environment"`
	Issues      []string        `json:"issues"`
	Warnings    []string        `json:"warnings"`
	Hint        string          `json:"hint,omitempty"`
}

// MachineRenderer writes the fixed JSON report shapes. Slices are always
// emitted as arrays, never null, so consumers can index without nil checks.
type MachineRenderer struct {
	w io.Writer
}

// NewMachineRenderer returns a machine renderer writing to w.
func NewMachineRenderer(w io.Writer) *MachineRenderer {
	return &MachineRenderer{w: w}
}

func (m *MachineRenderer) emit(v any) error {
	enc := json.NewEncoder(m.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func environmentOf(rec *envfile.Record) environmentJSON {
	return environmentJSON{Name: rec.Name, Tool: string(rec.Tool), Python: rec.Python}
}

func validationOf(rec *envfile.Record, res *validate.Result) validationJSON {
	return validationJSON{
		RunID:       res.RunID,
		Status:      string(res.Status),
		ExitCode:    res.Status.ExitCode(),
		Environment: environmentOf(rec),
		Issues:      emptyIfNil(res.Issues),
		Warnings:    emptyIfNil(res.Warnings),
	}
}

// Validation writes one validation result.
func (m *MachineRenderer) Validation(rec *envfile.Record, res *validate.Result) error {
	return m.emit(validationOf(rec, res))
}

// Fix writes a fix-mode outcome with its before and after classifications.
func (m *MachineRenderer) Fix(rec *envfile.Record, outcome *validate.FixOutcome) error {
	return m.emit(fixJSON{
		Environment:   environmentOf(rec),
		Before:        validationOf(rec, outcome.Before),
		After:         validationOf(rec, outcome.After),
		Installed:     emptyPackagesIfNil(outcome.Installed),
		FailedPackage: outcome.FailedPackage,
		FailureReason: outcome.FailureReason,
	})
}

// Sync writes one sync result. After a successful sync the recorded tool is
// active and the package map mirrors the live environment, so the status is
// active_valid.
func (m *MachineRenderer) Sync(rec *envfile.Record, res *reconcile.Result) error {
	changed := res.Changed
	if changed == nil {
		changed = []reconcile.Change{}
	}
	return m.emit(syncJSON{
		RunID:       res.RunID,
		Status:      string(validate.StatusActiveValid),
		Environment: environmentOf(rec),
		Issues:      []string{},
		Warnings:    []string{},
		NewPackages: emptyPackagesIfNil(res.Added),
		Removed:     emptyPackagesIfNil(res.Removed),
		Changed:     changed,
	})
}

// Document acknowledges a documentation-mode note write.
func (m *MachineRenderer) Document(rec *envfile.Record, pkg, note string) error {
	return m.emit(documentJSON{
		Status:      "noted",
		Environment: environmentOf(rec),
		Issues:      []string{},
		Warnings:    []string{},
		Package:     pkg,
		Note:        note,
	})
}

// Failure writes an operational error in the fixed report shape, the error
// kind landing in status and issues.
func (m *MachineRenderer) Failure(err error) error {
	return m.emit(failureJSON{
		Status:      string(errorStatus(err)),
		Environment: environmentJSON{},
		Issues:      []string{err.Error()},
		Warnings:    []string{},
		Hint:        errorHint(err),
	})
}

// errorStatus classifies an operational error into a validation state name.
func errorStatus(err error) validate.Status {
	if errors.Is(err, reconcile.ErrEnvironmentInactive) {
		return validate.StatusInactive
	}
	return validate.StatusError
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyPackagesIfNil(s []backend.Package) []backend.Package {
	if s == nil {
		return []backend.Package{}
	}
	return s
}
