package validate

import (
	"errors"

	"github.com/ecohydro/labenv/internal/backend"
)

// ErrCannotFix is returned when fix mode is requested from a status where
// remediation could target the wrong environment.
var ErrCannotFix = errors.New("cannot fix")

// Status is the terminal classification of one validation run.
type Status string

const (
	// StatusActiveValid means the recorded environment is active and every
	// recorded package is installed.
	StatusActiveValid Status = "active_valid"

	// StatusInactive means no environment of any backend is active.
	StatusInactive Status = "inactive"

	// StatusToolMismatch means an environment is active but its tool or
	// interpreter version differs from the record. An ambiguous snapshot
	// (several backends active at once) also classifies here rather than
	// guessing which backend wins.
	StatusToolMismatch Status = "tool_mismatch"

	// StatusMissingDependencies means the environment matches but one or
	// more recorded packages are not installed.
	StatusMissingDependencies Status = "missing_dependencies"

	// StatusError means a backend probe failed unexpectedly.
	StatusError Status = "error"
)

// ExitCode maps a status to the process exit code contract.
func (s Status) ExitCode() int {
	switch s {
	case StatusActiveValid:
		return 0
	case StatusInactive:
		return 1
	case StatusToolMismatch:
		return 2
	case StatusMissingDependencies:
		return 3
	}
	return 4
}

// Result is one validation run. Created fresh per run, never persisted.
type Result struct {
	// RunID correlates log lines and reports for this run.
	RunID string `json:"run_id"`

	// Status is the terminal classification.
	Status Status `json:"status"`

	// Issues are the blocking problems behind a non-valid status, in
	// evaluation order. For missing dependencies these are bare package
	// names.
	Issues []string `json:"issues"`

	// Warnings are non-blocking observations (unsynced drift, version
	// skew). They never change Status.
	Warnings []string `json:"warnings"`

	// Snapshot is the environment state this classification judged.
	Snapshot backend.Snapshot `json:"-"`
}

// FixOutcome reports a fix-mode run: the classification that authorized it,
// what was installed, and the re-validation afterwards.
type FixOutcome struct {
	Before    *Result
	After     *Result
	Installed []backend.Package

	// FailedPackage and FailureReason describe the install that stopped
	// remediation, if any.
	FailedPackage string
	FailureReason string
}
