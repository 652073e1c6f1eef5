// Package logging provides structured logging for labenv.
//
// All diagnostic output goes to stderr so stdout stays reserved for reports
// (human text or the machine-readable JSON document). The logger is built
// from a Config, typically populated by internal/config from the settings
// file and LABENV_* environment variables.
package logging
