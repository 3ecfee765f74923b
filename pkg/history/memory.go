package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getlogtx/logtx/pkg/txn"
)

// MemoryStore is a thread-safe bounded in-memory history store. When
// the bound is reached the oldest entries are evicted.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     []*Entry
	maxEntries  int
	subscribers map[Subscriber]struct{}
}

// NewMemoryStore creates a store keeping at most maxEntries
// transactions. A non-positive bound defaults to 1000.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		maxEntries:  maxEntries,
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Log implements Store.
func (s *MemoryStore) Log(rec txn.Record) {
	entry := &Entry{
		ID:         uuid.NewString(),
		CapturedAt: time.Now(),
		Record:     rec,
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[len(s.entries)-s.maxEntries:]
	}
	subs := make([]Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	// Slow subscribers miss entries rather than stalling the pipeline.
	for _, sub := range subs {
		select {
		case sub <- entry:
		default:
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List implements Store. Entries are returned newest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !matches(e, filter) {
			continue
		}
		if filter != nil && skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if filter != nil && filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Clear implements Store.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Count implements Store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe implements SubscribableStore.
func (s *MemoryStore) Subscribe() (Subscriber, func()) {
	sub := make(Subscriber, 64)
	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	return sub, func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
		close(sub)
	}
}

func matches(e *Entry, f *Filter) bool {
	if f == nil {
		return true
	}
	if f.Kind != "" && e.Record.Kind() != f.Kind {
		return false
	}

	var (
		method, url, backend string
		status               int
		hit                  bool
	)
	switch t := e.Record.(type) {
	case *txn.ClientTxn:
		method, url, status = t.Method, t.URL, t.Status
		hit = t.Hit()
		if t.Backend != nil {
			backend = t.Backend.BackendName
		}
	case *txn.BackendTxn:
		method, url, status = t.Method, t.URL, t.Status
		backend = t.BackendName
	}

	if f.Method != "" && method != f.Method {
		return false
	}
	if f.URLPrefix != "" && !strings.HasPrefix(url, f.URLPrefix) {
		return false
	}
	if f.Status != 0 && status != f.Status {
		return false
	}
	if f.Hit != nil && hit != *f.Hit {
		return false
	}
	if f.BackendName != "" && backend != f.BackendName {
		return false
	}
	return true
}
