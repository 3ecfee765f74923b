// Package stats reads proxy statistics-counter snapshots.
//
// The proxy periodically dumps its counters as a JSON document. This
// package parses such a dump into a Snapshot with typed counter
// lookups, optional JSONPath selection for nested counter groups, and
// deltas between two snapshots taken at different times. It performs
// no network I/O; snapshots come from files or byte slices the caller
// supplies.
package stats
