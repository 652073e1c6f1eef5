// Package main implements the labenv CLI for managing project environment
// records.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/config"
	"github.com/ecohydro/labenv/internal/logging"
	"github.com/ecohydro/labenv/internal/report"
)

var (
	configPath string
	recordDir  string
	jsonOutput bool

	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		if jsonOutput {
			_ = report.NewMachineRenderer(os.Stdout).Failure(err)
		} else {
			report.NewRenderer(os.Stderr).Failure(err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "labenv",
	Short: "Track and validate project Python environments",
	Long: `labenv keeps a per-project environment.toml recording which package
manager, interpreter version, and pinned packages a project's analyses
depend on, and checks the active environment against that record.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/labenv/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&recordDir, "dir", "d", "", "project directory holding environment.toml (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")
}

// exitError carries a process exit code through cobra without printing
// anything; the report has already been rendered.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// runtime bundles the shared pieces every command needs.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	runner backend.CommandRunner
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:    cfg,
		logger: logger,
		runner: &timeoutRunner{inner: backend.ExecRunner{}, timeout: cfg.Probe.Timeout},
	}, nil
}

func (r *runtime) close() {
	_ = r.logger.Sync()
}

// dir resolves the project directory: flag wins over config.
func (r *runtime) dir() string {
	if recordDir != "" {
		return recordDir
	}
	return r.cfg.Record.Dir
}

// timeoutRunner bounds every backend invocation with the configured probe
// timeout.
type timeoutRunner struct {
	inner   backend.CommandRunner
	timeout time.Duration
}

func (t *timeoutRunner) LookPath(name string) (string, error) {
	return t.inner.LookPath(name)
}

func (t *timeoutRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Run(ctx, name, args...)
}
