package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/validate"
)

func waitForEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return Event{}
	}
}

func TestNewWatcher_RequiresCheck(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), nil, zap.NewNop())
	require.Error(t, err)
}

func TestWatcher_InitialCheck(t *testing.T) {
	var calls atomic.Int32
	check := func(ctx context.Context) (*validate.Result, error) {
		calls.Add(1)
		return &validate.Result{RunID: "run-1", Status: validate.StatusInactive}, nil
	}

	w, err := NewWatcher(t.TempDir(), check, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))

	ev := waitForEvent(t, w.Events())
	require.NoError(t, ev.Err)
	assert.Equal(t, validate.StatusInactive, ev.Result.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_RevalidatesOnRecordChange(t *testing.T) {
	dir := t.TempDir()
	rec, err := envfile.NewRecord(envfile.ToolUV, "3.11", "streamflow")
	require.NoError(t, err)
	require.NoError(t, envfile.Save(dir, rec))

	var calls atomic.Int32
	check := func(ctx context.Context) (*validate.Result, error) {
		n := calls.Add(1)
		if n == 1 {
			return &validate.Result{RunID: "run-1", Status: validate.StatusActiveValid}, nil
		}
		return &validate.Result{RunID: "run-2", Status: validate.StatusMissingDependencies}, nil
	}

	w, err := NewWatcher(dir, check, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))
	first := waitForEvent(t, w.Events())
	assert.Equal(t, validate.StatusActiveValid, first.Result.Status)

	// An atomic save produces a temp-file burst plus a rename; the watcher
	// should coalesce it into a single re-validation.
	rec.Packages["numpy"] = "1.26.0"
	require.NoError(t, envfile.Save(dir, rec))

	second := waitForEvent(t, w.Events())
	require.NoError(t, second.Err)
	assert.Equal(t, validate.StatusMissingDependencies, second.Result.Status)
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	check := func(ctx context.Context) (*validate.Result, error) {
		return &validate.Result{RunID: "run-1", Status: validate.StatusActiveValid}, nil
	}

	w, err := NewWatcher(dir, check, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))
	waitForEvent(t, w.Events()) // initial check

	rec, err := envfile.NewRecord(envfile.ToolUV, "3.11", "other")
	require.NoError(t, err)
	require.NoError(t, envfile.Save(t.TempDir(), rec))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for unrelated file: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_ReportsCheckFailure(t *testing.T) {
	check := func(ctx context.Context) (*validate.Result, error) {
		return nil, errors.New("record unreadable")
	}

	w, err := NewWatcher(t.TempDir(), check, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background()))
	ev := waitForEvent(t, w.Events())
	require.Error(t, ev.Err)
	assert.Nil(t, ev.Result)
}
