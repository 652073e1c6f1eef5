package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecohydro/labenv/internal/envfile"
)

var (
	initTool   string
	initPython string
	initName   string
	initForce  bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initTool, "tool", "", "package manager backing the environment (uv, conda, pip)")
	initCmd.Flags().StringVar(&initPython, "python", "", "python version the environment targets (e.g. 3.11)")
	initCmd.Flags().StringVar(&initName, "name", "", "environment name (default: project directory name)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing environment.toml")
	_ = initCmd.MarkFlagRequired("tool")
	_ = initCmd.MarkFlagRequired("python")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an environment record for this project",
	Long: `Create environment.toml in the project directory.

The record starts with no packages; run 'labenv sync' inside the activated
environment to fill it in.

Examples:
  # Record a uv-managed environment on Python 3.11
  labenv init --tool uv --python 3.11

  # Replace an existing record
  labenv init --tool conda --python 3.10 --name streamflow --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	tool, err := envfile.ParseTool(initTool)
	if err != nil {
		return err
	}

	dir := rt.dir()
	name := initName
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving project directory: %w", err)
		}
		name = filepath.Base(abs)
	}

	rec, err := envfile.Create(dir, tool, initPython, name, initForce)
	if err != nil {
		return err
	}

	rt.logger.Info("record created", zap.String("path", envfile.Path(dir)))
	fmt.Fprintf(os.Stdout, "created %s (%s, python %s)\n", envfile.Path(dir), rec.Tool, rec.Python)
	return nil
}
