// Package watch re-runs validation whenever the environment record changes
// on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/validate"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// defaultDebounce coalesces the create+rename burst an atomic save produces
// into one re-validation.
const defaultDebounce = 200 * time.Millisecond

// CheckFunc runs one validation pass over the current record.
type CheckFunc func(ctx context.Context) (*validate.Result, error)

// Event is one re-validation outcome.
type Event struct {
	Result    *validate.Result
	Err       error
	Timestamp time.Time
}

// Watcher watches a project directory and re-validates when
// environment.toml changes. The directory is watched rather than the file
// itself because atomic saves replace the file via rename.
type Watcher struct {
	dir      string
	check    CheckFunc
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	events   chan Event
	stop     chan struct{}
	debounce time.Duration
}

// NewWatcher creates a watcher for the record in dir.
func NewWatcher(dir string, check CheckFunc, logger *zap.Logger) (*Watcher, error) {
	if check == nil {
		return nil, errors.New("check function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		dir:      dir,
		check:    check,
		logger:   logger,
		watcher:  fsw,
		events:   make(chan Event, 10),
		stop:     make(chan struct{}),
		debounce: defaultDebounce,
	}, nil
}

// Start runs an initial validation, then begins watching. Events are
// delivered on Events() until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.runCheck(ctx)
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// Events returns the channel of re-validation outcomes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) processEvents(ctx context.Context) {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isRecordChange(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			w.runCheck(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// isRecordChange reports whether a filesystem event touched the record
// itself. Temp files from in-flight atomic saves are ignored.
func (w *Watcher) isRecordChange(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != envfile.FileName {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) runCheck(ctx context.Context) {
	result, err := w.check(ctx)
	out := Event{Result: result, Err: err, Timestamp: time.Now()}

	if err != nil {
		w.logger.Warn("validation failed", zap.Error(err))
	} else {
		w.logger.Info("validated",
			zap.String("status", string(result.Status)),
			zap.String("run_id", result.RunID))
	}

	select {
	case w.events <- out:
	default:
		// Slow consumer, drop the event.
	}
}
