package history

import (
	"time"

	"github.com/getlogtx/logtx/pkg/txn"
)

// Entry is one completed transaction captured for inspection.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// CapturedAt is when the transaction was delivered.
	CapturedAt time.Time `json:"capturedAt"`

	// Record is the completed transaction.
	Record txn.Record `json:"-"`
}

// Store defines the interface for transaction history storage.
type Store interface {
	// Log records a completed transaction.
	Log(rec txn.Record)

	// Get retrieves an entry by ID. Returns nil if not found.
	Get(id string) *Entry

	// List returns entries matching the filter, newest first.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of stored entries.
	Count() int
}

// Subscriber is a channel that receives new entries.
type Subscriber chan *Entry

// SubscribableStore extends Store with subscription support for live
// tails.
type SubscribableStore interface {
	Store

	// Subscribe registers a subscriber to receive new entries.
	// Returns the channel and an unsubscribe function.
	Subscribe() (Subscriber, func())
}

// Filter defines criteria for listing history entries. Zero values
// disable each criterion.
type Filter struct {
	// Kind filters by transaction kind (client or backend).
	Kind txn.Kind

	// Method filters by request method.
	Method string

	// URLPrefix filters by URL prefix.
	URLPrefix string

	// Status filters by response status.
	Status int

	// Hit filters client transactions by cache-hit outcome.
	Hit *bool

	// BackendName filters by the backend the transaction used.
	BackendName string

	// Limit is the maximum number of entries to return. Zero means
	// unlimited.
	Limit int

	// Offset is the number of matching entries to skip.
	Offset int
}
