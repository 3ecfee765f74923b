// Package source supplies fragment streams to the dispatcher.
//
// A Source yields fragments one at a time in real arrival order and
// signals exhaustion with ErrEndOfStream, which is the normal way a
// dispatch loop ends — not an error condition. Two implementations are
// provided: SliceSource over an in-memory fixture and FileSource
// replaying a persisted JSONL fragment dump.
//
// Filtered wraps any Source with the reader controls the shared event
// log exposes: skip the first M fragments, stop after N, and restrict
// by tag name with literal or regular-expression matches, optionally
// case-insensitive.
package source
