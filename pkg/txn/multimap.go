package txn

import "strings"

// Pair is one key/value entry in a MultiMap.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MultiMap is an ordered multi-valued string mapping. Insertion order
// is preserved and duplicate keys are retained, which is what header
// aggregation and cache-decision bookkeeping both need. Keys are
// stored as given; callers that want case-normalized keys lower-case
// before adding. The zero value is ready to use.
type MultiMap struct {
	pairs []Pair
}

// Add appends a key/value entry, keeping any existing entries for key.
func (m *MultiMap) Add(key, value string) {
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Get returns the first value recorded for key.
func (m *MultiMap) Get(key string) (string, bool) {
	for _, p := range m.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Values returns all values recorded for key, in insertion order.
func (m *MultiMap) Values(key string) []string {
	var vals []string
	for _, p := range m.pairs {
		if p.Key == key {
			vals = append(vals, p.Value)
		}
	}
	return vals
}

// Has reports whether at least one entry exists for key.
func (m *MultiMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// HasValue reports whether any entry carries the given value.
func (m *MultiMap) HasValue(value string) bool {
	for _, p := range m.pairs {
		if p.Value == value {
			return true
		}
	}
	return false
}

// Len returns the number of entries, counting duplicates.
func (m *MultiMap) Len() int { return len(m.pairs) }

// Pairs returns a copy of all entries in insertion order.
func (m *MultiMap) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

func (m *MultiMap) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range m.pairs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Key)
		sb.WriteString(": ")
		sb.WriteString(p.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}
