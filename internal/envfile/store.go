package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/ecohydro/labenv/internal/normalize"
)

// FileName is the fixed project-relative location of the record.
const FileName = "environment.toml"

// Path returns the record path for a project directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and parses the record from a project directory.
//
// Returns ErrNotFound if no record exists and ErrCorrupt if the file cannot
// be parsed or violates the record invariants. Package and note keys are
// normalized on load; two keys normalizing to the same name is corruption.
func Load(dir string) (*Record, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, Path(dir))
		}
		return nil, fmt.Errorf("failed to read %s: %w", Path(dir), err)
	}
	return decode(data)
}

// Save atomically writes the record to a project directory.
//
// The record is written to a temporary file in the same directory and moved
// into place with a single rename, so a crash mid-write never leaves a
// half-written record. Output is canonical: saving an unchanged record is a
// byte-for-byte no-op.
func Save(dir string, r *Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid record: %w", err)
	}

	data, err := encode(r)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".environment-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// The record is a committed project file, not a private config.
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), Path(dir)); err != nil {
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}

// Create initializes a new record in a project directory.
//
// Fails with ErrAlreadyExists unless overwrite expresses explicit intent to
// replace the prior record.
func Create(dir string, tool Tool, python, name string, overwrite bool) (*Record, error) {
	if _, err := os.Stat(Path(dir)); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("%w at %s", ErrAlreadyExists, Path(dir))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking for existing record: %w", err)
	}

	r, err := NewRecord(tool, python, name)
	if err != nil {
		return nil, err
	}
	if err := Save(dir, r); err != nil {
		return nil, err
	}
	return r, nil
}

// decode parses raw TOML into a Record, preserving unknown keys.
func decode(data []byte) (*Record, error) {
	raw := map[string]any{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	envRaw, ok := raw["environment"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing [environment] section", ErrCorrupt)
	}

	r := &Record{
		Packages: map[string]string{},
		Notes:    map[string]string{},
	}

	for key, val := range envRaw {
		switch key {
		case "tool", "python", "name":
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: environment.%s must be a string", ErrCorrupt, key)
			}
			switch key {
			case "tool":
				r.Tool = Tool(s)
			case "python":
				r.Python = s
			case "name":
				r.Name = s
			}
		default:
			if r.envExtras == nil {
				r.envExtras = map[string]any{}
			}
			r.envExtras[key] = val
		}
	}

	var err error
	if r.Packages, err = decodeStringMap(raw, "packages"); err != nil {
		return nil, err
	}
	if r.Notes, err = decodeStringMap(raw, "notes"); err != nil {
		return nil, err
	}

	for key, val := range raw {
		switch key {
		case "environment", "packages", "notes":
			continue
		}
		if r.rootExtras == nil {
			r.rootExtras = map[string]any{}
		}
		r.rootExtras[key] = val
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return r, nil
}

// decodeStringMap extracts a flat string-to-string section, normalizing keys.
func decodeStringMap(raw map[string]any, section string) (map[string]string, error) {
	out := map[string]string{}
	val, ok := raw[section]
	if !ok {
		return out, nil
	}
	table, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: [%s] must be a table", ErrCorrupt, section)
	}
	seen := map[string]string{}
	for key, v := range table {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s must be a string", ErrCorrupt, section, key)
		}
		norm := normalize.Name(key)
		if orig, dup := seen[norm]; dup {
			return nil, fmt.Errorf("%w: %s keys %q and %q normalize to the same package", ErrCorrupt, section, key, orig)
		}
		seen[norm] = key
		out[norm] = s
	}
	return out, nil
}

// encode renders the record in canonical form: fixed section order
// ([environment], [packages], [notes], then preserved extra sections sorted
// by name) with sorted keys inside every table, so output is deterministic
// and repeated saves are byte-identical.
func encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	section := func(v any) error {
		return toml.NewEncoder(&buf).Encode(v)
	}

	// Preserved top-level scalars must precede the first table header.
	scalars := map[string]any{}
	tables := map[string]any{}
	for k, v := range r.rootExtras {
		if _, isTable := v.(map[string]any); isTable {
			tables[k] = v
		} else {
			scalars[k] = v
		}
	}
	if len(scalars) > 0 {
		if err := section(scalars); err != nil {
			return nil, err
		}
		buf.WriteString("\n")
	}

	env := map[string]any{
		"tool":   string(r.Tool),
		"python": r.Python,
		"name":   r.Name,
	}
	for k, v := range r.envExtras {
		env[k] = v
	}
	if err := section(map[string]any{"environment": env}); err != nil {
		return nil, err
	}

	buf.WriteString("\n")
	if err := section(map[string]any{"packages": r.Packages}); err != nil {
		return nil, err
	}
	buf.WriteString("\n")
	if err := section(map[string]any{"notes": r.Notes}); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tables))
	for k := range tables {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		buf.WriteString("\n")
		if err := section(map[string]any{k: tables[k]}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
