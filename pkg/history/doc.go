// Package history provides bounded in-memory storage of completed
// transactions for user inspection.
//
// The dispatch pipeline reconstructs transactions and hands them to a
// consumer; wiring that consumer to a history Store keeps the last N
// transactions queryable by kind, method, URL, status, or cache
// outcome, and lets live tails subscribe to new entries as they
// complete. This serves inspection and debugging, and is distinct from
// operational logging (which uses log/slog for platform diagnostics).
//
// # Package Design
//
// This is a leaf consumer of pkg/txn with no other internal
// dependencies, so any layer can import it without cycles.
package history
