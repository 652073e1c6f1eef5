// Package backend normalizes the three supported package managers (uv,
// conda, pip) behind one adapter contract.
//
// Each adapter shells out to exactly one external binary per probe and parses
// its JSON listing into the shared package shape. A missing binary degrades
// to Installed() == false, and an installed backend with no active
// environment is a normal state signalled by ErrInactive, never a fault.
// Listing never mutates backend state; only Install (fix mode) does.
//
// Adapters never read ambient process state. Activity is judged against an
// explicit Snapshot captured once at the CLI boundary, which keeps every
// adapter pure and testable with synthetic snapshots.
package backend
