package backend

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot is an explicit capture of the ambient environment state every
// adapter and the validation engine judge against. Capturing it once at the
// process boundary keeps the engines pure: the same snapshot always produces
// the same classification.
type Snapshot struct {
	// VirtualEnv is the VIRTUAL_ENV value, set by both venv and uv.
	VirtualEnv string

	// CondaPrefix is the CONDA_PREFIX value.
	CondaPrefix string

	// CondaDefaultEnv is the CONDA_DEFAULT_ENV value.
	CondaDefaultEnv string

	// UVManaged reports whether the active virtualenv was created by uv,
	// detected from the "uv = <version>" marker uv writes into pyvenv.cfg.
	UVManaged bool

	// Python is the active interpreter version (e.g. "3.11.4"), empty when
	// no interpreter could be identified.
	Python string
}

// Capture reads the ambient process environment into a Snapshot.
//
// The interpreter version comes from pyvenv.cfg when a virtualenv is active,
// falling back to one `python --version` probe otherwise. A failed fallback
// probe leaves Python empty rather than failing the capture: an absent
// interpreter is for the validation engine to classify.
func Capture(ctx context.Context, runner CommandRunner) Snapshot {
	snap := Snapshot{
		VirtualEnv:      os.Getenv("VIRTUAL_ENV"),
		CondaPrefix:     os.Getenv("CONDA_PREFIX"),
		CondaDefaultEnv: os.Getenv("CONDA_DEFAULT_ENV"),
	}

	if snap.VirtualEnv != "" {
		cfg, err := os.ReadFile(filepath.Join(snap.VirtualEnv, "pyvenv.cfg"))
		if err == nil {
			snap.UVManaged, snap.Python = parsePyvenvCfg(cfg)
		}
	}

	if snap.Python == "" && (snap.CondaPrefix != "" || snap.VirtualEnv != "") {
		if stdout, _, err := runner.Run(ctx, "python", "--version"); err == nil {
			snap.Python = parsePythonVersion(stdout)
		}
	}

	return snap
}

// parsePyvenvCfg extracts the uv marker and interpreter version from a
// pyvenv.cfg file. venv records the version under "version", uv under
// "version_info".
func parsePyvenvCfg(data []byte) (uvManaged bool, version string) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "uv":
			uvManaged = true
		case "version", "version_info":
			version = value
		}
	}
	return uvManaged, version
}

// parsePythonVersion extracts "3.11.4" from "Python 3.11.4\n".
func parsePythonVersion(out []byte) string {
	fields := strings.Fields(string(out))
	if len(fields) == 2 && fields[0] == "Python" {
		return fields[1]
	}
	return ""
}

// MajorMinor reduces a version to its major.minor prefix for comparison
// against the recorded interpreter version.
func MajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
