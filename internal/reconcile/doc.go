// Package reconcile merges live backend package state into the persisted
// environment record.
//
// Automatic sync applies additions, removals, and version changes to the
// record's package map and persists the result. Documentation mode instead
// attaches a usage note to a single package, leaving the package map
// untouched. Notes are an independently-owned sub-resource: a package sync
// never deletes a note, so methods-paragraph history survives package churn.
package reconcile
