// Package report renders validation, fix, and sync outcomes for humans
// and for scripts.
//
// The human renderer writes colored summaries with lipgloss. The machine
// renderer writes a fixed JSON shape to stdout so callers can parse results
// without scraping styled text. Both renderers are read-only over their
// inputs.
package report
