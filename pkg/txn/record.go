package txn

import (
	"strconv"
	"strings"

	"github.com/getlogtx/logtx/pkg/fragment"
)

// Kind discriminates the two transaction record variants.
type Kind string

// Record kinds.
const (
	KindClient  Kind = "client"
	KindBackend Kind = "backend"
)

// Record is a transaction aggregate under construction. The two
// implementations, ClientTxn and BackendTxn, share the base request/
// response fields and differ in their tag-to-effect tables and their
// start/end tag sets.
type Record interface {
	// Kind discriminates the record variant.
	Kind() Kind

	// Descriptor is the record's identity key while in flight.
	Descriptor() int

	// Fragments returns the fragments folded into the record so far,
	// in arrival order. Fragments seen before activation are absent.
	Fragments() []fragment.Fragment

	// Active reports whether the transaction-start tag has been seen
	// and the transaction has not yet completed.
	Active() bool

	// Complete reports whether the transaction-end tag has been seen.
	// A complete record is never mutated again.
	Complete() bool

	// ingest folds one fragment into the record, returning true when
	// this fragment completed the transaction. The table is needed to
	// resolve cross-descriptor backend references.
	ingest(f fragment.Fragment, table *Table) (bool, error)
}

// base carries the fields and tag effects shared by both record kinds.
type base struct {
	fd       int
	frags    []fragment.Fragment
	active   bool
	complete bool

	// ReqHeaders and RespHeaders keep lower-cased keys in insertion
	// order with duplicates retained.
	ReqHeaders  MultiMap
	RespHeaders MultiMap

	ReqProtocol  string
	RespProtocol string
	Method       string
	URL          string
	Status       int
	Reason       string
	BodyLength   int
}

func (b *base) Descriptor() int { return b.fd }

func (b *base) Active() bool { return b.active }

func (b *base) Complete() bool { return b.complete }

func (b *base) Fragments() []fragment.Fragment { return b.frags }

// applyShared handles the tags whose semantics are identical on both
// sides of the proxy. It reports whether the tag was consumed.
func (b *base) applyShared(f fragment.Fragment) (bool, error) {
	switch f.Tag {
	case fragment.TagReqHeader:
		return true, addHeader(&b.ReqHeaders, f)

	case fragment.TagRespHeader:
		return true, addHeader(&b.RespHeaders, f)

	case fragment.TagReqProtocol:
		b.ReqProtocol = f.Payload
		return true, nil

	case fragment.TagRespProtocol:
		b.RespProtocol = f.Payload
		return true, nil

	case fragment.TagBodyLength:
		n, err := atoi(f)
		if err != nil {
			return true, err
		}
		b.BodyLength = n
		return true, nil
	}
	return false, nil
}

// atoi parses an integer payload, wrapping failures as parse faults.
func atoi(f fragment.Fragment) (int, error) {
	n, err := strconv.Atoi(f.Payload)
	if err != nil {
		return 0, parseFault(f, err)
	}
	return n, nil
}

// addHeader splits a raw header line on the first colon and records
// the trimmed, case-normalized pair.
func addHeader(m *MultiMap, f fragment.Fragment) error {
	key, value, ok := strings.Cut(f.Payload, ":")
	if !ok {
		return parseFault(f, errNoSeparator)
	}
	m.Add(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value))
	return nil
}

func parseFault(f fragment.Fragment, err error) error {
	return &ParseFault{Descriptor: f.Descriptor, Tag: f.Tag, Payload: f.Payload, Err: err}
}
