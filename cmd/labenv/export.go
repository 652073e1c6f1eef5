package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/export"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the record as a methods paragraph",
	Long: `Render environment.toml as a citable prose paragraph for papers
and lab notebooks, listing the interpreter, the package manager, and each
pinned package with its recorded purpose.

The record is never modified.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	rec, err := envfile.Load(rt.dir())
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, export.Methods(rec))
	return nil
}
