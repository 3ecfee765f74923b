package txn

import "github.com/getlogtx/logtx/pkg/fragment"

// Table is the single authority binding in-flight descriptors to
// transaction records. The stream is processed by one logical consumer
// (see Builder), so the table carries no locking; a deployment that
// shards work across goroutines must partition by descriptor and give
// each partition its own Table, because backend references require the
// owning client's and the referenced backend's entries to be visible
// to the same resolver.
type Table struct {
	records map[int]Record
}

// NewTable returns an empty descriptor table.
func NewTable() *Table {
	return &Table{records: make(map[int]Record)}
}

// Lookup returns the record bound to the descriptor, or nil.
func (t *Table) Lookup(fd int) Record {
	return t.records[fd]
}

// Bind associates the descriptor with the record, replacing any
// previous binding.
func (t *Table) Bind(fd int, r Record) {
	t.records[fd] = r
}

// Unbind releases the descriptor.
func (t *Table) Unbind(fd int) {
	delete(t.records, fd)
}

// Len returns the number of bound descriptors.
func (t *Table) Len() int { return len(t.records) }

// resolveBackend returns the backend record for fd, creating it as a
// forward reference when absent. The backend and director names are
// applied set-once: an existing record keeps whatever it already
// learned from its own fragments. A descriptor bound to a client
// record cannot be referenced as a backend; that is a consistency
// fault.
func (t *Table) resolveBackend(fd int, director, backendName string) (*BackendTxn, error) {
	if rec := t.Lookup(fd); rec != nil {
		bt, ok := rec.(*BackendTxn)
		if !ok {
			return nil, &ConsistencyFault{
				Descriptor: fd,
				Have:       rec.Kind(),
				Role:       fragment.RoleBackend,
				Detail:     "referenced as a backend by a client transaction",
			}
		}
		if bt.DirectorName == "" {
			bt.DirectorName = director
		}
		return bt, nil
	}

	bt := NewBackendTxn(fd)
	bt.BackendName = backendName
	bt.DirectorName = director
	t.Bind(fd, bt)
	return bt, nil
}
