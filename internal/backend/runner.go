package backend

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner abstracts external binary invocation so adapters can be
// tested without the real package managers present.
type CommandRunner interface {
	// LookPath reports where a binary lives, or exec.ErrNotFound.
	LookPath(name string) (string, error)

	// Run executes a binary and returns its stdout. Stderr is returned
	// separately for error reporting.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs real commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	// A timed-out probe surfaces as the context error so callers can
	// attribute a hang to the backend rather than waiting forever.
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// installed is the shared Installed() implementation: a missing binary is
// recovered into false, never an error.
func installed(runner CommandRunner, binary string) bool {
	_, err := runner.LookPath(binary)
	return err == nil
}
