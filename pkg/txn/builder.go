package txn

import "github.com/getlogtx/logtx/pkg/fragment"

// Builder routes fragments to transaction records, creating them in
// the table on first sight and retiring them per the lifecycle rules:
// client records leave the table the moment they complete, backend
// records stay bound until descriptor reuse supersedes them.
type Builder struct {
	table *Table
}

// NewBuilder returns a builder over the given table.
func NewBuilder(table *Table) *Builder {
	return &Builder{table: table}
}

// Table exposes the builder's descriptor table, mainly for tests and
// diagnostics.
func (b *Builder) Table() *Table { return b.table }

// Ingest folds one fragment into its transaction. It returns the
// record only when this fragment completed it; fragments that merely
// advance a transaction, connection-level fragments (descriptor 0),
// and role-less fragments for unknown descriptors all return nil.
//
// A live record contacted by the opposite role is a consistency fault:
// the descriptor space is shared between the two kinds and must never
// alias them without an intervening release. A *completed* occupant is
// different — the descriptor has legitimately been recycled, so the
// old record is superseded and a fresh one takes the binding.
func (b *Builder) Ingest(f fragment.Fragment) (Record, error) {
	if f.Descriptor == 0 {
		return nil, nil
	}

	rec := b.table.Lookup(f.Descriptor)
	switch {
	case rec == nil:
		if rec = newRecord(f); rec == nil {
			return nil, nil
		}
		b.table.Bind(f.Descriptor, rec)

	case kindMismatch(rec, f):
		if !rec.Complete() {
			return nil, &ConsistencyFault{
				Descriptor: f.Descriptor,
				Have:       rec.Kind(),
				Role:       f.Role,
				Detail:     "descriptor reused without release",
			}
		}
		b.table.Unbind(f.Descriptor)
		if rec = newRecord(f); rec == nil {
			return nil, nil
		}
		b.table.Bind(f.Descriptor, rec)

	case rec.Complete():
		// Same-role traffic on a finished record. A start tag means
		// the descriptor was recycled for a fresh transaction; anything
		// else is a stale tail and is dropped. Completed records are
		// never mutated either way.
		if !startsTransaction(f) {
			return nil, nil
		}
		b.table.Unbind(f.Descriptor)
		rec = newRecord(f)
		b.table.Bind(f.Descriptor, rec)
	}

	done, err := rec.ingest(f, b.table)
	if done && rec.Kind() == KindClient {
		// Client descriptors are free for reuse the instant the
		// transaction ends.
		b.table.Unbind(f.Descriptor)
	}
	if !done {
		return nil, err
	}
	return rec, err
}

// newRecord creates the record variant matching the fragment's role,
// or nil for role-less fragments.
func newRecord(f fragment.Fragment) Record {
	switch {
	case f.Client():
		return NewClientTxn(f.Descriptor)
	case f.Backend():
		return NewBackendTxn(f.Descriptor)
	}
	return nil
}

// kindMismatch reports whether the fragment's role contradicts the
// record's kind. Role-less fragments never mismatch; they are fed to
// whichever record holds the descriptor.
func kindMismatch(rec Record, f fragment.Fragment) bool {
	switch {
	case f.Client():
		return rec.Kind() != KindClient
	case f.Backend():
		return rec.Kind() != KindBackend
	}
	return false
}

// startsTransaction reports whether the fragment carries a role's
// transaction-start tag.
func startsTransaction(f fragment.Fragment) bool {
	return (f.Client() && f.Tag == fragment.TagTxnStart) ||
		(f.Backend() && f.Tag == fragment.TagConnOpen)
}
