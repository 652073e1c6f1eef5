package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ecohydro/labenv/internal/backend"
	"github.com/ecohydro/labenv/internal/envfile"
	"github.com/ecohydro/labenv/internal/reconcile"
	"github.com/ecohydro/labenv/internal/validate"
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// statusLabel maps each terminal status to its styled one-line banner.
func statusLabel(s validate.Status) string {
	switch s {
	case validate.StatusActiveValid:
		return okStyle.Render("✓ active and valid")
	case validate.StatusInactive:
		return warnStyle.Render("○ inactive")
	case validate.StatusToolMismatch:
		return errStyle.Render("✗ tool mismatch")
	case validate.StatusMissingDependencies:
		return errStyle.Render("✗ missing dependencies")
	}
	return errStyle.Render("✗ error")
}

// Renderer writes human-readable reports. It never mutates its inputs.
type Renderer struct {
	w io.Writer
}

// NewRenderer returns a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) headline(rec *envfile.Record) {
	fmt.Fprintf(r.w, "%s %s\n",
		labelStyle.Render(rec.Name),
		dimStyle.Render(fmt.Sprintf("(%s, python %s)", rec.Tool, rec.Python)))
}

// Validation renders one validation result.
func (r *Renderer) Validation(rec *envfile.Record, res *validate.Result) {
	r.headline(rec)
	fmt.Fprintln(r.w, statusLabel(res.Status))

	switch res.Status {
	case validate.StatusMissingDependencies:
		for _, name := range res.Issues {
			pin := name
			if v, ok := rec.Packages[name]; ok {
				pin = fmt.Sprintf("%s==%s", name, v)
			}
			fmt.Fprintf(r.w, "  missing: %s\n", pin)
		}
	default:
		for _, issue := range res.Issues {
			fmt.Fprintf(r.w, "  %s\n", issue)
		}
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(r.w, "  %s %s\n", warnStyle.Render("warning:"), warning)
	}
	if hint := statusHint(res.Status); hint != "" {
		fmt.Fprintln(r.w, dimStyle.Render("  hint: "+hint))
	}
}

// Fix renders a fix-mode run: what was installed and where the environment
// ended up.
func (r *Renderer) Fix(rec *envfile.Record, outcome *validate.FixOutcome) {
	r.headline(rec)
	for _, pkg := range outcome.Installed {
		fmt.Fprintf(r.w, "%s %s==%s\n", okStyle.Render("installed"), pkg.Name, pkg.Version)
	}
	if outcome.FailedPackage != "" {
		fmt.Fprintf(r.w, "%s %s: %s\n",
			errStyle.Render("install failed"), outcome.FailedPackage, outcome.FailureReason)
	}
	fmt.Fprintln(r.w, statusLabel(outcome.After.Status))
}

// Sync renders the drift a sync run recorded.
func (r *Renderer) Sync(rec *envfile.Record, res *reconcile.Result) {
	r.headline(rec)
	if res.Empty() {
		fmt.Fprintln(r.w, dimStyle.Render("record already up to date"))
		return
	}
	for _, pkg := range res.Added {
		fmt.Fprintf(r.w, "  %s %s==%s\n", okStyle.Render("+"), pkg.Name, pkg.Version)
	}
	for _, ch := range res.Changed {
		fmt.Fprintf(r.w, "  %s %s %s\n", warnStyle.Render("~"), ch.Name,
			dimStyle.Render(fmt.Sprintf("%s -> %s", ch.From, ch.To)))
	}
	for _, pkg := range res.Removed {
		fmt.Fprintf(r.w, "  %s %s==%s\n", errStyle.Render("-"), pkg.Name, pkg.Version)
	}
}

// Failure renders an operational error with a remedy hint when one is known.
func (r *Renderer) Failure(err error) {
	fmt.Fprintf(r.w, "%s %v\n", errStyle.Render("error:"), err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(r.w, dimStyle.Render("hint: "+hint))
	}
}

// statusHint suggests the next command for a non-valid status.
func statusHint(s validate.Status) string {
	switch s {
	case validate.StatusInactive:
		return "activate the recorded environment and re-run"
	case validate.StatusToolMismatch:
		return "activate the environment recorded in environment.toml"
	case validate.StatusMissingDependencies:
		return "run 'labenv validate --fix' to install missing packages"
	}
	return ""
}

// errorHint maps known error kinds to a remedy.
func errorHint(err error) string {
	var probe *backend.ProbeError
	switch {
	case errors.Is(err, envfile.ErrNotFound):
		return "run 'labenv init' to create environment.toml"
	case errors.Is(err, envfile.ErrCorrupt):
		return "environment.toml is not readable; fix it by hand or re-run 'labenv init --force'"
	case errors.Is(err, reconcile.ErrEnvironmentInactive):
		return "activate the environment before syncing"
	case errors.Is(err, validate.ErrCannotFix):
		return "fix mode only repairs missing dependencies; resolve the reported status first"
	case errors.As(err, &probe):
		return fmt.Sprintf("check that %s is installed and on PATH", probe.Tool)
	}
	return ""
}

// trimANSI strips styling for width-insensitive assertions and piped output
// comparisons.
func trimANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
