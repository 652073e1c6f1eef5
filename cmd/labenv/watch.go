package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/report"
	"github.com/ecohydro/labenv/internal/validate"
	"github.com/ecohydro/labenv/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate whenever the record changes",
	Long: `Watch the project directory and re-run validation every time
environment.toml changes, printing each result. Runs until interrupted.

Examples:
  labenv watch
  labenv watch --json | tee validation.log`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	dir := rt.dir()

	// Fail fast if there is no record to watch.
	if _, err := envfile.Load(dir); err != nil {
		return err
	}

	engine, err := validate.NewEngine(rt.runner, rt.logger)
	if err != nil {
		return err
	}

	// The record is reloaded per check so edits to tool, python, or the
	// package pins all take effect.
	check := func(ctx context.Context) (*validate.Result, error) {
		rec, err := envfile.Load(dir)
		if err != nil {
			return nil, err
		}
		snap := backend.Capture(ctx, rt.runner)
		return engine.Validate(ctx, rec, snap), nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := watch.NewWatcher(dir, check, rt.logger)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return err
	}

	human := report.NewRenderer(os.Stdout)
	machine := report.NewMachineRenderer(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-watcher.Events():
			if ev.Err != nil {
				if jsonOutput {
					_ = machine.Failure(ev.Err)
				} else {
					human.Failure(ev.Err)
				}
				continue
			}
			rec, err := envfile.Load(dir)
			if err != nil {
				if jsonOutput {
					_ = machine.Failure(err)
				} else {
					human.Failure(err)
				}
				continue
			}
			if jsonOutput {
				_ = machine.Validation(rec, ev.Result)
			} else {
				human.Validation(rec, ev.Result)
				fmt.Fprintln(os.Stdout)
			}
		}
	}
}
