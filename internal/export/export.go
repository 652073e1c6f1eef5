// Package export renders an environment record as a citable methods
// paragraph for papers and lab notebooks. It is a read-only consumer of the
// record.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ecohydro/labenv/internal/envfile"
)

// toolPhrase describes how each backend manages the environment in prose.
var toolPhrase = map[envfile.Tool]string{
	envfile.ToolUV:    "a uv-managed virtual environment",
	envfile.ToolConda: "a conda environment",
	envfile.ToolPip:   "a pip-managed virtual environment",
}

// Methods renders the record as one paragraph, packages sorted by name with
// their pinned versions and any recorded purpose notes.
func Methods(rec *envfile.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyses for %s were performed in Python %s using %s",
		rec.Name, rec.Python, toolPhrase[rec.Tool])

	names := make([]string, 0, len(rec.Packages))
	for name := range rec.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		b.WriteString(".")
		return b.String()
	}

	b.WriteString(" with ")
	for i, name := range names {
		switch {
		case i == 0:
		case i == len(names)-1:
			if len(names) == 2 {
				b.WriteString(" and ")
			} else {
				b.WriteString(", and ")
			}
		default:
			b.WriteString(", ")
		}
		b.WriteString(packagePhrase(rec, name))
	}
	b.WriteString(".")
	return b.String()
}

func packagePhrase(rec *envfile.Record, name string) string {
	version := rec.Packages[name]
	if note, ok := rec.Notes[name]; ok && note != "" {
		return fmt.Sprintf("%s (v%s; %s)", name, version, note)
	}
	return fmt.Sprintf("%s (v%s)", name, version)
}
