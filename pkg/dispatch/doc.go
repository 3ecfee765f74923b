// Package dispatch drives fragment streams through the transaction
// builder and delivers completed transactions to a consumer.
//
// The dispatcher is single-threaded and pull-driven: it takes one
// fragment from the source, runs the builder and any consumer callback
// synchronously, and only then pulls the next fragment. Faults raised
// while folding in one fragment or delivering one transaction are
// logged and counted but never abort the stream; a single corrupt
// transaction is sacrificed rather than halting observability for the
// whole log. Only exhaustion of the source ends the loop.
//
// Delivery policy: with aggregation on, only client transactions are
// delivered and their backend transactions ride along by reference;
// with aggregation off, every completed transaction is delivered
// independently. Completed transactions can additionally be gated by a
// payload regular expression or a compiled filter expression.
package dispatch
