package dispatch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/getlogtx/logtx/pkg/fragment"
	"github.com/getlogtx/logtx/pkg/logging"
	"github.com/getlogtx/logtx/pkg/source"
	"github.com/getlogtx/logtx/pkg/txn"
)

// Consumer receives one completed transaction. Callers that only care
// about the completion event ignore the parameter.
type Consumer func(rec txn.Record)

// ChunkConsumer receives one raw fragment. Returning true stops
// iteration; this stop signal exists only in raw chunk dispatch, the
// transaction pipeline always keeps consuming.
type ChunkConsumer func(f fragment.Fragment) bool

// Options tune a Process run.
type Options struct {
	// Aggregate selects the delivery policy. True delivers only client
	// transactions, with backend transactions reachable through their
	// client's Backend reference. False delivers every completed
	// transaction, client or backend, independently.
	Aggregate bool

	// NonRequest, if set, receives fragments with descriptor 0 —
	// connection-level events not tied to any transaction. When unset
	// such fragments are treated as handled.
	NonRequest func(f fragment.Fragment)

	// Filter, if set, gates which completed transactions reach the
	// consumer.
	Filter *TxnFilter
}

// Dispatcher drives fragment streams through a Builder and applies the
// delivery policy to completed transactions.
type Dispatcher struct {
	builder *txn.Builder
	log     *slog.Logger
	metrics *Metrics
}

// New returns a dispatcher over a fresh transaction table. A nil
// logger disables logging; a nil metrics disables instrumentation.
func New(log *slog.Logger, m *Metrics) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		builder: txn.NewBuilder(txn.NewTable()),
		log:     log,
		metrics: m,
	}
}

// Builder exposes the dispatcher's builder, mainly for tests and
// diagnostics.
func (d *Dispatcher) Builder() *txn.Builder { return d.builder }

// Process pulls fragments from src until exhaustion, reassembling
// transactions and delivering completed ones to consumer per the
// options. Faults scoped to a single fragment or transaction are
// logged and counted, never fatal; only source exhaustion ends the
// run normally. An I/O error in the source itself is returned.
func (d *Dispatcher) Process(src source.Source, consumer Consumer, opts Options) error {
	for {
		frag, err := src.Next()
		if err != nil {
			if errors.Is(err, source.ErrEndOfStream) {
				return nil
			}
			d.metrics.fault("source")
			return fmt.Errorf("fragment source: %w", err)
		}
		d.metrics.fragment()

		if frag.Descriptor == 0 {
			if opts.NonRequest != nil {
				opts.NonRequest(frag)
			}
			continue
		}

		// Session bookkeeping describes the connection, not any
		// transaction, and must never reach the builder.
		if frag.Administrative() {
			continue
		}

		rec, err := d.builder.Ingest(frag)
		d.metrics.active(d.builder.Table().Len())
		if err != nil {
			// One corrupt fragment never aborts the stream. If it was
			// the completing fragment, its transaction is sacrificed
			// rather than delivered half-parsed.
			d.logFault(frag, err)
			continue
		}
		if rec == nil {
			continue
		}

		// Backends synthesized purely as forward references can reach
		// completion without ever receiving their own fragments. Those
		// carry no data worth delivering.
		if rec.Kind() == txn.KindBackend && len(rec.Fragments()) == 0 {
			d.metrics.degenerate()
			d.log.Debug("dropping degenerate backend record", "descriptor", rec.Descriptor())
			continue
		}

		if opts.Aggregate && rec.Kind() != txn.KindClient {
			continue
		}

		ok, err := opts.Filter.Match(rec)
		if err != nil {
			d.metrics.fault("filter")
			d.log.Warn("transaction filter failed", "descriptor", rec.Descriptor(), "error", err)
			continue
		}
		if !ok {
			continue
		}

		d.metrics.transaction(string(rec.Kind()))
		d.deliver(consumer, rec)
	}
}

// Chunks pulls raw fragments from src and hands each one to consumer
// without any reassembly. The consumer's stop signal is honored here,
// matching the raw dispatch contract.
func (d *Dispatcher) Chunks(src source.Source, consumer ChunkConsumer) error {
	for {
		frag, err := src.Next()
		if err != nil {
			if errors.Is(err, source.ErrEndOfStream) {
				return nil
			}
			return fmt.Errorf("fragment source: %w", err)
		}
		d.metrics.fragment()
		if consumer != nil && consumer(frag) {
			return nil
		}
	}
}

// deliver invokes the consumer, containing any panic so one misbehaving
// callback cannot take down the stream.
func (d *Dispatcher) deliver(consumer Consumer, rec txn.Record) {
	if consumer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.metrics.fault("panic")
			d.log.Error("consumer panicked", "descriptor", rec.Descriptor(), "panic", r)
		}
	}()
	consumer(rec)
}

// logFault records a builder fault with its kind distinguishable, so
// reuse/ordering bugs stand out from ordinary bad payloads.
func (d *Dispatcher) logFault(frag fragment.Fragment, err error) {
	var consistency *txn.ConsistencyFault
	var parse *txn.ParseFault
	switch {
	case errors.As(err, &consistency):
		d.metrics.fault("consistency")
		d.log.Warn("consistency fault",
			"descriptor", frag.Descriptor, "tag", frag.Tag, "error", err)
	case errors.As(err, &parse):
		d.metrics.fault("parse")
		d.log.Debug("parse fault",
			"descriptor", frag.Descriptor, "tag", frag.Tag, "error", err)
	default:
		d.metrics.fault("other")
		d.log.Warn("dispatch fault",
			"descriptor", frag.Descriptor, "tag", frag.Tag, "error", err)
	}
}
