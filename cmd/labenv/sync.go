package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/reconcile"
	"github.com/ecohydro/labenv/internal/report"
)

var (
	syncPackage string
	syncNote    string
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVarP(&syncPackage, "package", "p", "", "document a single package instead of syncing")
	syncCmd.Flags().StringVarP(&syncNote, "note", "n", "", "usage note for --package (prompted for if omitted)")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Record the active environment's installed packages",
	Long: `Reconcile environment.toml against the packages installed in the
active environment. New packages are added, version changes recorded,
and uninstalled packages removed. Usage notes survive package removal.

With --package, sync instead documents one package's purpose without
touching the rest of the record.

Examples:
  # Sync the record with the active environment
  labenv sync

  # Record why a package is in the environment
  labenv sync --package xarray --note "NetCDF forcing data"`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	dir := rt.dir()
	rec, err := envfile.Load(dir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	snap := backend.Capture(ctx, rt.runner)
	adapter, err := backend.For(rec.Tool, rt.runner)
	if err != nil {
		return err
	}
	engine, err := reconcile.NewEngine(dir, rt.logger)
	if err != nil {
		return err
	}

	if syncPackage != "" {
		note := syncNote
		if note == "" {
			note, err = promptNote(syncPackage)
			if err != nil {
				return err
			}
		}
		if err := engine.Document(ctx, rec, adapter, snap, syncPackage, note); err != nil {
			return err
		}
		if jsonOutput {
			return report.NewMachineRenderer(os.Stdout).Document(rec, syncPackage, note)
		}
		fmt.Fprintf(os.Stdout, "noted %s: %s\n", syncPackage, note)
		return nil
	}

	result, err := engine.Sync(ctx, rec, adapter, snap)
	if err != nil {
		return err
	}

	if jsonOutput {
		return report.NewMachineRenderer(os.Stdout).Sync(rec, result)
	}
	report.NewRenderer(os.Stdout).Sync(rec, result)
	return nil
}

// promptNote asks for the note interactively. Empty input is rejected so a
// stray enter cannot blank an existing note.
func promptNote(pkg string) (string, error) {
	fmt.Fprintf(os.Stderr, "note for %s: ", pkg)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading note: %w", err)
	}
	note := strings.TrimSpace(line)
	if note == "" {
		return "", fmt.Errorf("note must not be empty")
	}
	return note, nil
}
