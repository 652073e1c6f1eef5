package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
)

const instrumentationName = "github.com/ecohydro/labenv/internal/validate"

// Engine classifies environment health. It never mutates the record.
type Engine struct {
	runner backend.CommandRunner
	logger *zap.Logger
	tracer trace.Tracer
}

// NewEngine creates a validation engine.
func NewEngine(runner backend.CommandRunner, logger *zap.Logger) (*Engine, error) {
	if runner == nil {
		return nil, errors.New("command runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		runner: runner,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// Validate classifies the snapshot against the record. Failures are
// classified into the result rather than returned: every run produces a
// report.
func (e *Engine) Validate(ctx context.Context, rec *envfile.Record, snap backend.Snapshot) *Result {
	ctx, span := e.tracer.Start(ctx, "validate.run")
	defer span.End()

	result := &Result{
		RunID:    uuid.New().String(),
		Issues:   []string{},
		Warnings: []string{},
		Snapshot: snap,
	}
	defer func() {
		span.SetAttributes(
			attribute.String("run_id", result.RunID),
			attribute.String("status", string(result.Status)),
		)
		e.logger.Debug("validated environment",
			zap.String("run_id", result.RunID),
			zap.String("status", string(result.Status)),
			zap.Strings("issues", result.Issues),
		)
	}()

	active := activeTools(e.runner, snap)

	// 1. Nothing active at all.
	if len(active) == 0 {
		result.Status = StatusInactive
		return result
	}

	// 2. The active environment must belong to the recorded tool, alone.
	// Several simultaneously active backends are ambiguous and classify as
	// a mismatch rather than guessing which one wins.
	if len(active) > 1 || active[0] != rec.Tool {
		result.Status = StatusToolMismatch
		result.Issues = append(result.Issues,
			fmt.Sprintf("record expects %s but active: %s", rec.Tool, joinTools(active)))
		return result
	}
	if snap.Python != "" && backend.MajorMinor(snap.Python) != backend.MajorMinor(rec.Python) {
		result.Status = StatusToolMismatch
		result.Issues = append(result.Issues,
			fmt.Sprintf("python %s active, record expects %s", snap.Python, rec.Python))
		return result
	}

	// 3. Probe the backend for the installed package set.
	adapter, err := backend.For(rec.Tool, e.runner)
	if err != nil {
		result.Status = StatusError
		result.Issues = append(result.Issues, err.Error())
		return result
	}
	observed, err := adapter.List(ctx, snap)
	if err != nil {
		// Active has already been established, so even ErrInactive here
		// is an unexpected probe outcome.
		result.Status = StatusError
		result.Issues = append(result.Issues, err.Error())
		return result
	}

	observedVersions := make(map[string]string, len(observed))
	for _, pkg := range observed {
		observedVersions[pkg.Name] = pkg.Version
	}

	// Drift warnings never change the status.
	for _, pkg := range observed {
		if _, ok := rec.Packages[pkg.Name]; !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s %s installed but not recorded (sync to record it)", pkg.Name, pkg.Version))
		}
	}

	var missing []string
	for name, version := range rec.Packages {
		installed, ok := observedVersions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if installed != version {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s recorded at %s but %s installed", name, version, installed))
		}
	}
	sort.Strings(missing)
	sort.Strings(result.Warnings)

	// 4. Missing recorded packages block; otherwise the environment is
	// healthy.
	if len(missing) > 0 {
		result.Status = StatusMissingDependencies
		result.Issues = append(result.Issues, missing...)
		return result
	}
	result.Status = StatusActiveValid
	return result
}

// Fix remediates a missing-dependencies classification by installing each
// missing package through the active adapter, one at a time, stopping at the
// first failure, then re-validates.
//
// Any other starting status fails fast with ErrCannotFix before touching the
// backend: remediating an inactive or mismatched environment could install
// into the wrong place.
func (e *Engine) Fix(ctx context.Context, rec *envfile.Record, snap backend.Snapshot) (*FixOutcome, error) {
	ctx, span := e.tracer.Start(ctx, "validate.fix")
	defer span.End()

	before := e.Validate(ctx, rec, snap)
	if before.Status != StatusMissingDependencies {
		return nil, fmt.Errorf("%w: environment status is %s", ErrCannotFix, before.Status)
	}

	adapter, err := backend.For(rec.Tool, e.runner)
	if err != nil {
		return nil, err
	}

	outcome := &FixOutcome{Before: before}
	for _, name := range before.Issues {
		version := rec.Packages[name]
		if err := adapter.Install(ctx, snap, name, version); err != nil {
			outcome.FailedPackage = name
			outcome.FailureReason = err.Error()
			e.logger.Warn("install failed, stopping remediation",
				zap.String("package", name), zap.Error(err))
			break
		}
		outcome.Installed = append(outcome.Installed, backend.Package{Name: name, Version: version})
		e.logger.Info("installed missing package",
			zap.String("package", name), zap.String("version", version))
	}

	outcome.After = e.Validate(ctx, rec, snap)
	return outcome, nil
}

// activeTools returns the tools whose adapter reports an active environment,
// in enum order.
func activeTools(runner backend.CommandRunner, snap backend.Snapshot) []envfile.Tool {
	var active []envfile.Tool
	for _, adapter := range backend.All(runner) {
		if adapter.Active(snap) {
			active = append(active, adapter.Tool())
		}
	}
	return active
}

func joinTools(tools []envfile.Tool) string {
	s := ""
	for i, tool := range tools {
		if i > 0 {
			s += ", "
		}
		s += string(tool)
	}
	return s
}
