// Package validate classifies an environment's health against the persisted
// record.
//
// Classification is a fixed-order state machine over an explicit environment
// snapshot: inactive, tool or interpreter mismatch, missing recorded
// packages, healthy, or probe error — first match wins. The engine is
// read-only with respect to the record; fix mode remediates through the live
// backend (never the record) and only from the missing-dependencies state,
// re-validating afterwards instead of assuming success.
package validate
