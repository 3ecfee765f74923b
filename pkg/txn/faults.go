package txn

import (
	"fmt"

	"github.com/getlogtx/logtx/pkg/fragment"
)

// ParseFault reports a fragment payload that could not be decoded: a
// scalar that fails to parse, a header line without a separator, a
// token count mismatch. It is scoped to the single fragment being
// folded in; the transaction it belongs to keeps accumulating.
type ParseFault struct {
	Descriptor int
	Tag        string
	Payload    string
	Err        error
}

func (e *ParseFault) Error() string {
	return fmt.Sprintf("parse fault on fd %d tag %q payload %q: %v",
		e.Descriptor, e.Tag, e.Payload, e.Err)
}

func (e *ParseFault) Unwrap() error { return e.Err }

// ConsistencyFault reports a violation of the one-live-transaction-
// per-descriptor invariant: a live descriptor reused by the opposite
// role, or a backend reference naming a descriptor bound to an
// incompatible kind. It indicates a stream-ordering violation or a
// defect in the reuse/unbind policy, and is surfaced distinctly from
// parse faults so operators can tell the two apart. It is still
// non-fatal to stream processing.
type ConsistencyFault struct {
	Descriptor int
	Have       Kind
	Role       fragment.Role
	Detail     string
}

func (e *ConsistencyFault) Error() string {
	return fmt.Sprintf("consistency fault on fd %d: table holds a %s transaction, %s (fragment role %s)",
		e.Descriptor, e.Have, e.Detail, e.Role)
}
