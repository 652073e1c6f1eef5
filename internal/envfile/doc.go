// Package envfile reads and writes the persisted environment record.
//
// The record lives at a fixed project-relative path (environment.toml) and is
// the single source of truth shared by sync, validate, and the methods
// exporter. It is human-editable: loading normalizes package keys, preserves
// unknown keys and sections, and saving always emits a canonical byte-stable
// layout so repeated syncs never produce spurious diffs.
//
// Packages and notes are independent sub-resources of the record. A note may
// outlive its package (kept for methods-paragraph history) and is never
// dropped by a package sync.
package envfile
