package txn

import (
	"fmt"
	"strings"

	"github.com/getlogtx/logtx/pkg/fragment"
)

// BackendTxn aggregates fragments for one backend-facing request. It
// comes into being by either of two triggers: a backend-role fragment
// stream opening the connection, or a client's backend-ref tag naming
// a descriptor the table has not seen yet. Whichever happens first
// creates the record; the other path only augments it. Unlike client
// records, a completed backend record stays bound in the table — the
// proxy may keep the connection alive, and later client fragments must
// still resolve the backend's identity — until descriptor reuse
// supersedes it.
type BackendTxn struct {
	base

	// BackendName is the configured backend the connection went to.
	// Set once, never overwritten.
	BackendName string

	// DirectorName is propagated from the owning client's backend-ref
	// tag; backend log lines do not name the director themselves.
	// Set once, never overwritten.
	DirectorName string
}

// NewBackendTxn returns an inactive backend record for the descriptor.
func NewBackendTxn(fd int) *BackendTxn {
	return &BackendTxn{base: base{fd: fd}}
}

func (b *BackendTxn) Kind() Kind { return KindBackend }

func (b *BackendTxn) ingest(f fragment.Fragment, table *Table) (bool, error) {
	if !b.active {
		if !(f.Backend() && f.Tag == fragment.TagConnOpen) {
			return false, nil
		}
		b.active = true
	}

	if f.Backend() && (f.Tag == fragment.TagConnClose || f.Tag == fragment.TagConnReuse) {
		// Closed outright or returned to the connection pool; either
		// way this transaction is over.
		b.complete = true
		b.active = false
	}

	b.frags = append(b.frags, f)
	return b.complete, b.extract(f)
}

func (b *BackendTxn) extract(f fragment.Fragment) error {
	if handled, err := b.applyShared(f); handled {
		return err
	}

	switch f.Tag {
	case fragment.TagConnOpen, fragment.TagConnReuse:
		if b.BackendName == "" {
			if name, _, _ := strings.Cut(f.Payload, " "); name != "" {
				b.BackendName = name
			}
		}

	case fragment.TagReqMethod:
		b.Method = f.Payload

	case fragment.TagReqURL:
		b.URL = f.Payload

	case fragment.TagRespStatus:
		n, err := atoi(f)
		if err != nil {
			return err
		}
		b.Status = n

	case fragment.TagRespReason:
		b.Reason = f.Payload
	}
	return nil
}

func (b *BackendTxn) String() string {
	return fmt.Sprintf("<BackendTxn backend=%s %s %s -> %d>", b.BackendName, b.Method, b.URL, b.Status)
}
