// Package metrics provides the counters and gauges the dispatch
// pipeline records: fragments seen, transactions completed per kind,
// faults per kind, degenerate records dropped, and the number of
// descriptors currently in flight.
//
// The implementation is a small self-contained registry with labeled
// counters and gauges and a plain-text exposition writer. No metrics
// endpoint is served here; the CLI dumps the registry on demand.
package metrics
