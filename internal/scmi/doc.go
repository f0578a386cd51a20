// Package scmi owns the clock management protocol contract.
//
// Ownership boundary:
// - protocol, message and status identifiers
// - agent-visible status values and their wire form
// - payload codec primitives (wire subpackage)
package scmi
