package fragment

import "fmt"

// Role identifies which side of the proxy emitted a fragment.
type Role string

// Fragment roles.
const (
	// RoleClient marks fragments belonging to a client-facing transaction.
	RoleClient Role = "client"

	// RoleBackend marks fragments belonging to a backend-facing transaction.
	RoleBackend Role = "backend"

	// RoleNone marks fragments not attributable to either side.
	RoleNone Role = "none"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleBackend, RoleNone:
		return true
	}
	return false
}

// Client-side transaction tags.
const (
	TagTxnStart      = "txn-start"
	TagReqMethod     = "req-method"
	TagReqURL        = "req-url"
	TagReqHeader     = "req-header"
	TagRespHeader    = "resp-header"
	TagReqProtocol   = "req-protocol"
	TagRespProtocol  = "resp-protocol"
	TagRespStatus    = "resp-status"
	TagRespReason    = "resp-reason"
	TagBodyLength    = "body-length"
	TagRoutineCall   = "routine-call"
	TagRoutineReturn = "routine-return"
	TagHashInput     = "hash-input"
	TagBackendRef    = "backend-ref"
	TagTxnEnd        = "txn-end"
)

// Backend-side transaction tags. Request/response tags are shared with
// the client vocabulary above.
const (
	TagConnOpen  = "conn-open"
	TagConnReuse = "conn-reuse"
	TagConnClose = "conn-close"
)

// Administrative session tags. These describe the client connection,
// not any single transaction, and must never reach the transaction
// builder.
const (
	TagSessionOpen  = "session-open"
	TagSessionClose = "session-close"
	TagSessionStats = "session-stats"
)

var administrative = map[string]struct{}{
	TagSessionOpen:  {},
	TagSessionClose: {},
	TagSessionStats: {},
}

// Fragment is one atomic tagged event from the shared event log.
// Fragments are immutable once produced by a source.
type Fragment struct {
	// Descriptor scopes the fragment to one transaction. Descriptor 0
	// marks a connection-level event not tied to any transaction.
	// Descriptors are reused once their transaction ends.
	Descriptor int `json:"descriptor"`

	// Role is the side of the proxy the fragment belongs to.
	Role Role `json:"role"`

	// Tag is the event name.
	Tag string `json:"tag"`

	// Payload is the opaque event data; its token layout depends on Tag.
	Payload string `json:"payload"`
}

// Client reports whether the fragment belongs to a client transaction.
func (f Fragment) Client() bool { return f.Role == RoleClient }

// Backend reports whether the fragment belongs to a backend transaction.
func (f Fragment) Backend() bool { return f.Role == RoleBackend }

// Administrative reports whether the fragment's tag is in the fixed
// administrative session set.
func (f Fragment) Administrative() bool {
	_, ok := administrative[f.Tag]
	return ok
}

func (f Fragment) String() string {
	return fmt.Sprintf("[fd %d %s] %s: %s", f.Descriptor, f.Role, f.Tag, f.Payload)
}
