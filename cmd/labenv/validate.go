package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/report"
	"github.com/ecohydro/labenv/internal/validate"
)

var validateFix bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateFix, "fix", false, "install missing recorded packages")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the active environment against the record",
	Long: `Classify the active environment against environment.toml.

Exit codes:
  0  active and valid
  1  no environment active
  2  active environment does not match the record
  3  recorded packages missing from the environment
  4  backend probe failed

With --fix, missing recorded packages are installed one at a time through
the recorded backend. Fix refuses to run from any other state.

Examples:
  # Gate a pipeline run on the environment being intact
  labenv validate && python run_analysis.py

  # Install whatever the record says is missing
  labenv validate --fix`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	rec, err := envfile.Load(rt.dir())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	snap := backend.Capture(ctx, rt.runner)
	engine, err := validate.NewEngine(rt.runner, rt.logger)
	if err != nil {
		return err
	}

	if validateFix {
		outcome, err := engine.Fix(ctx, rec, snap)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := report.NewMachineRenderer(os.Stdout).Fix(rec, outcome); err != nil {
				return err
			}
		} else {
			report.NewRenderer(os.Stdout).Fix(rec, outcome)
		}
		if code := outcome.After.Status.ExitCode(); code != 0 {
			return &exitError{code: code}
		}
		return nil
	}

	result := engine.Validate(ctx, rec, snap)
	if jsonOutput {
		if err := report.NewMachineRenderer(os.Stdout).Validation(rec, result); err != nil {
			return err
		}
	} else {
		report.NewRenderer(os.Stdout).Validation(rec, result)
	}
	if code := result.Status.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
