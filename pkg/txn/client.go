package txn

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/getlogtx/logtx/pkg/fragment"
)

var (
	errNoSeparator   = errors.New("header line has no ':' separator")
	errDanglingState = errors.New("routine return without a preceding call")
)

// ClientTxn aggregates fragments for one client-facing request. It is
// created on the first client-role fragment for a free descriptor,
// activated by the transaction-start tag, and removed from the table
// the moment the transaction-end tag completes it, freeing the
// descriptor for immediate reuse.
type ClientTxn struct {
	base

	// XID is the proxy-assigned transaction identifier.
	XID string

	// CacheDecisions maps internal routine names to their outcomes, in
	// call order.
	CacheDecisions MultiMap

	// HashInputs are the cache-hash inputs, in emission order.
	HashInputs []string

	ClientAddr string
	ClientPort string

	StartedAt   time.Time
	CompletedAt time.Time

	StartDelay     time.Duration
	ProcessingTime time.Duration
	DeliverTime    time.Duration

	// Backend is the backend transaction this request triggered, if
	// any. Shared reference, not ownership: the same backend record
	// stays resolvable through the table until its descriptor is
	// superseded.
	Backend *BackendTxn

	// pendingRoutine holds the routine name between a routine-call tag
	// and its matching routine-return.
	pendingRoutine string
	routineOpen    bool
}

// NewClientTxn returns an inactive client record for the descriptor.
func NewClientTxn(fd int) *ClientTxn {
	return &ClientTxn{base: base{fd: fd}}
}

func (c *ClientTxn) Kind() Kind { return KindClient }

// Hit reports whether any cache decision resolved to "hit".
func (c *ClientTxn) Hit() bool { return c.CacheDecisions.HasValue("hit") }

// Miss reports whether any cache decision resolved to "miss".
func (c *ClientTxn) Miss() bool { return c.CacheDecisions.HasValue("miss") }

func (c *ClientTxn) ingest(f fragment.Fragment, table *Table) (bool, error) {
	if !c.active {
		if !(f.Client() && f.Tag == fragment.TagTxnStart) {
			// Stale tail from the descriptor's previous occupant, or
			// chatter before the start tag. Dropped, not appended.
			return false, nil
		}
		c.active = true
	}

	if f.Client() && f.Tag == fragment.TagTxnEnd {
		c.complete = true
		c.active = false
	}

	c.frags = append(c.frags, f)
	return c.complete, c.extract(f, table)
}

func (c *ClientTxn) extract(f fragment.Fragment, table *Table) error {
	if handled, err := c.applyShared(f); handled {
		return err
	}

	switch f.Tag {
	case fragment.TagTxnStart:
		fields := strings.Fields(f.Payload)
		if len(fields) != 3 {
			return parseFault(f, fmt.Errorf("want 3 tokens, got %d", len(fields)))
		}
		c.ClientAddr, c.ClientPort, c.XID = fields[0], fields[1], fields[2]

	case fragment.TagReqMethod:
		c.Method = f.Payload

	case fragment.TagReqURL:
		c.URL = f.Payload

	case fragment.TagRespStatus:
		n, err := atoi(f)
		if err != nil {
			return err
		}
		c.Status = n

	case fragment.TagRespReason:
		c.Reason = f.Payload

	case fragment.TagRoutineCall:
		c.pendingRoutine = f.Payload
		c.routineOpen = true

	case fragment.TagRoutineReturn:
		if !c.routineOpen {
			return parseFault(f, errDanglingState)
		}
		c.CacheDecisions.Add(c.pendingRoutine, f.Payload)
		c.pendingRoutine = ""
		c.routineOpen = false

	case fragment.TagHashInput:
		c.HashInputs = append(c.HashInputs, f.Payload)

	case fragment.TagBackendRef:
		return c.resolveBackendRef(f, table)

	case fragment.TagTxnEnd:
		return c.extractTimings(f)
	}
	return nil
}

// resolveBackendRef binds this client to the backend transaction its
// payload names, creating the backend record as a forward reference
// when the stream has not yet produced its own fragments. The director
// name only travels on this tag, so it is propagated from here and set
// exactly once.
func (c *ClientTxn) resolveBackendRef(f fragment.Fragment, table *Table) error {
	fields := strings.Fields(f.Payload)
	if len(fields) != 3 {
		return parseFault(f, fmt.Errorf("want 3 tokens, got %d", len(fields)))
	}
	backendFD, err := strconv.Atoi(fields[0])
	if err != nil {
		return parseFault(f, err)
	}
	director, backendName := fields[1], fields[2]

	bt, err := table.resolveBackend(backendFD, director, backendName)
	if err != nil {
		return err
	}
	c.Backend = bt
	return nil
}

func (c *ClientTxn) extractTimings(f fragment.Fragment) error {
	fields := strings.Fields(f.Payload)
	if len(fields) != 6 {
		return parseFault(f, fmt.Errorf("want 6 tokens, got %d", len(fields)))
	}
	started, err := epochSeconds(fields[1])
	if err != nil {
		return parseFault(f, err)
	}
	completed, err := epochSeconds(fields[2])
	if err != nil {
		return parseFault(f, err)
	}
	delay, err := seconds(fields[3])
	if err != nil {
		return parseFault(f, err)
	}
	processing, err := seconds(fields[4])
	if err != nil {
		return parseFault(f, err)
	}
	deliver, err := seconds(fields[5])
	if err != nil {
		return parseFault(f, err)
	}

	c.XID = fields[0]
	c.StartedAt = started
	c.CompletedAt = completed
	c.StartDelay = delay
	c.ProcessingTime = processing
	c.DeliverTime = deliver
	return nil
}

func (c *ClientTxn) String() string {
	return fmt.Sprintf("<ClientTxn xid=%s %s %s -> %d>", c.XID, c.Method, c.URL, c.Status)
}

// epochSeconds converts a fractional epoch-seconds token to a time.
func epochSeconds(tok string) (time.Time, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return time.Time{}, err
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))), nil
}

// seconds converts a fractional seconds token to a duration.
func seconds(tok string) (time.Duration, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(v * float64(time.Second)), nil
}
