package reconcile

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
	"github.com/ecohydro/labenv/internal/normalize"
)

const instrumentationName = "github.com/ecohydro/labenv/internal/reconcile"

// Engine reconciles live observations against the record in one project
// directory.
type Engine struct {
	dir    string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewEngine creates a reconciliation engine for a project directory.
func NewEngine(dir string, logger *zap.Logger) (*Engine, error) {
	if dir == "" {
		return nil, errors.New("project directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		dir:    dir,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// Sync lists the active environment through the adapter, merges the observed
// packages into the record, and persists it.
//
// The record's tool and notes are never touched. An inactive backend fails
// with ErrEnvironmentInactive before anything is modified: an accidental run
// outside the activated environment must not empty the package map.
func (e *Engine) Sync(ctx context.Context, rec *envfile.Record, adapter backend.Adapter, snap backend.Snapshot) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.sync")
	defer span.End()

	observations, err := adapter.List(ctx, snap)
	if err != nil {
		if errors.Is(err, backend.ErrInactive) {
			return nil, fmt.Errorf("%w (tool %s)", ErrEnvironmentInactive, rec.Tool)
		}
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	result := diff(rec, observations)
	result.RunID = uuid.New().String()
	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Int("added", len(result.Added)),
		attribute.Int("removed", len(result.Removed)),
		attribute.Int("changed", len(result.Changed)),
	)

	if result.Empty() {
		e.logger.Debug("sync found no drift", zap.String("run_id", result.RunID))
		return result, nil
	}

	for _, pkg := range result.Added {
		rec.Packages[pkg.Name] = pkg.Version
	}
	for _, change := range result.Changed {
		rec.Packages[change.Name] = change.To
	}
	for _, pkg := range result.Removed {
		delete(rec.Packages, pkg.Name)
	}

	if err := envfile.Save(e.dir, rec); err != nil {
		return nil, fmt.Errorf("failed to persist sync result: %w", err)
	}

	e.logger.Info("synced environment record",
		zap.String("run_id", result.RunID),
		zap.Int("added", len(result.Added)),
		zap.Int("removed", len(result.Removed)),
		zap.Int("changed", len(result.Changed)),
	)
	return result, nil
}

// Document attaches a usage note to one package, persisting only the note
// change. The target may be a recorded package or one observed live but not
// yet synced; anything else is ErrPackageNotFound.
func (e *Engine) Document(ctx context.Context, rec *envfile.Record, adapter backend.Adapter, snap backend.Snapshot, pkg, note string) error {
	ctx, span := e.tracer.Start(ctx, "reconcile.document")
	defer span.End()

	name := normalize.Name(pkg)
	span.SetAttributes(attribute.String("package", name))

	if !rec.HasPackage(name) && !observedLive(ctx, adapter, snap, name) {
		return fmt.Errorf("%w: %q is neither recorded nor installed", ErrPackageNotFound, pkg)
	}

	rec.SetNote(name, note)
	if err := envfile.Save(e.dir, rec); err != nil {
		return fmt.Errorf("failed to persist note: %w", err)
	}

	e.logger.Info("documented package", zap.String("package", name))
	return nil
}

// observedLive reports whether the named package is installed in the active
// environment. An inactive or unreachable backend simply means no live
// observations.
func observedLive(ctx context.Context, adapter backend.Adapter, snap backend.Snapshot, name string) bool {
	observations, err := adapter.List(ctx, snap)
	if err != nil {
		return false
	}
	for _, obs := range observations {
		if obs.Name == name {
			return true
		}
	}
	return false
}

// diff computes the three-way delta between the recorded and observed
// package sets. Observation names arrive normalized from the adapter, so
// comparison is direct map lookup.
func diff(rec *envfile.Record, observations []backend.Package) *Result {
	observed := make(map[string]string, len(observations))
	for _, obs := range observations {
		observed[obs.Name] = obs.Version
	}

	result := &Result{}
	for name, version := range observed {
		recorded, ok := rec.Packages[name]
		switch {
		case !ok:
			result.Added = append(result.Added, backend.Package{Name: name, Version: version})
		case recorded != version:
			result.Changed = append(result.Changed, Change{Name: name, From: recorded, To: version})
		}
	}
	for name, version := range rec.Packages {
		if _, ok := observed[name]; !ok {
			result.Removed = append(result.Removed, backend.Package{Name: name, Version: version})
		}
	}

	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].Name < result.Added[j].Name })
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i].Name < result.Removed[j].Name })
	sort.Slice(result.Changed, func(i, j int) bool { return result.Changed[i].Name < result.Changed[j].Name })
	return result
}
