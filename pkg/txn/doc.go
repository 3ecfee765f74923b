// Package txn reassembles interleaved log fragments into complete
// client and backend request transactions.
//
// The shared event log interleaves fragments for many transactions on
// one stream; only fragments sharing a descriptor are mutually
// ordered, and descriptors are recycled as the proxy reuses
// connections. This package holds the three pieces that solve that:
//
//   - Record: the mutable aggregate built fragment by fragment, in two
//     kinds (ClientTxn, BackendTxn) sharing a common base of request/
//     response fields.
//   - Table: the single authority mapping an in-flight descriptor to
//     its record, and the arbiter of descriptor reuse.
//   - Builder: the factory and state machine that routes each fragment
//     to the right record, creating, activating, completing, and
//     superseding records as the stream dictates.
//
// Faults raised here are scoped to one fragment or one transaction and
// are typed (ParseFault, ConsistencyFault) so callers can keep the
// stream alive while surfacing reuse/ordering bugs distinctly from
// ordinary bad payloads.
package txn
