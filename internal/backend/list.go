package backend

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/normalize"
)

// listEntry is the JSON listing shape shared by all three backends. conda
// entries carry extra fields (channel, build) that are ignored here.
type listEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// listJSON runs a backend's listing command and parses its JSON output into
// normalized packages, preserving backend order.
func listJSON(ctx context.Context, runner CommandRunner, tool envfile.Tool, binary string, args ...string) ([]Package, error) {
	stdout, stderr, err := runCommand(ctx, runner, tool, binary, args...)
	if err != nil {
		return nil, err
	}

	var entries []listEntry
	if err := json.Unmarshal(stdout, &entries); err != nil {
		return nil, &ProbeError{
			Tool:   tool,
			Cmd:    binary + " " + strings.Join(args, " "),
			Stderr: string(stderr),
			Err:    err,
		}
	}

	packages := make([]Package, 0, len(entries))
	for _, e := range entries {
		packages = append(packages, Package{
			Name:    normalize.Name(e.Name),
			Version: e.Version,
		})
	}
	return packages, nil
}

// install runs a backend's install command for one package.
func install(ctx context.Context, runner CommandRunner, tool envfile.Tool, binary string, args ...string) error {
	_, _, err := runCommand(ctx, runner, tool, binary, args...)
	return err
}

// runCommand invokes the backend binary. Any failure becomes a *ProbeError
// carrying the command and its stderr; the underlying cause (including
// exec.ErrNotFound and context.DeadlineExceeded) stays reachable through
// errors.Is.
func runCommand(ctx context.Context, runner CommandRunner, tool envfile.Tool, binary string, args ...string) ([]byte, []byte, error) {
	stdout, stderr, err := runner.Run(ctx, binary, args...)
	if err != nil {
		return nil, nil, &ProbeError{
			Tool:   tool,
			Cmd:    binary + " " + strings.Join(args, " "),
			Stderr: string(stderr),
			Err:    err,
		}
	}
	return stdout, stderr, nil
}

// pinEquals renders a pip/uv style name==version spec, or the bare name when
// no version is recorded.
func pinEquals(name, version string) string {
	if version == "" {
		return name
	}
	return name + "==" + version
}
