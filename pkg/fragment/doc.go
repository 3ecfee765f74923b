// Package fragment defines the atomic event type read from a caching
// reverse-proxy's shared event log.
//
// A Fragment is one tagged log line: a descriptor scoping it to a
// transaction, a role (client-side, backend-side, or neither), a tag
// name, and an opaque payload. Fragments for different transactions
// are interleaved on the same stream; only fragments sharing a
// descriptor are ordered relative to each other.
//
// # Package Design
//
// This is a leaf package with no internal dependencies, allowing it to
// be imported by any package without creating import cycles. Higher
// layers (source, txn, dispatch) consume fragments; nothing here has
// behavior beyond classification helpers.
package fragment
