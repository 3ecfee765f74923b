package stats

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Snapshot is one point-in-time dump of the proxy's counters. Counter
// names are dotted paths into the dump's nested structure; values are
// the numeric leaves.
type Snapshot struct {
	// TakenAt is when the snapshot was captured, if the dump carries a
	// "timestamp" field; otherwise the parse time.
	TakenAt time.Time

	counters map[string]uint64
}

// Load reads and parses a counter dump file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read counter dump: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON counter dump. Numeric leaves anywhere in the
// document become counters named by their dotted path; non-numeric
// leaves are ignored.
func Parse(data []byte) (*Snapshot, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse counter dump: %w", err)
	}

	snap := &Snapshot{TakenAt: time.Now(), counters: make(map[string]uint64)}

	if ts := first(doc, "$.timestamp"); ts != nil {
		if s, ok := ts.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				snap.TakenAt = t
			}
		}
	}

	flatten("", doc, snap.counters)
	return snap, nil
}

// first returns the first match of a JSONPath expression in doc.
func first(doc any, path string) any {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil
	}
	if got := x.Get(doc); len(got) > 0 {
		return got[0]
	}
	return nil
}

func flatten(prefix string, node any, out map[string]uint64) {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			name := key
			if prefix != "" {
				name = prefix + "." + key
			}
			flatten(name, child, out)
		}
	case int64:
		if prefix != "" && v >= 0 {
			out[prefix] = uint64(v)
		}
	case float64:
		if prefix != "" && v >= 0 {
			out[prefix] = uint64(v)
		}
	}
}

// Get returns the named counter's value.
func (s *Snapshot) Get(name string) (uint64, bool) {
	v, ok := s.counters[name]
	return v, ok
}

// Names returns all counter names in sorted order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.counters))
	for name := range s.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of counters in the snapshot.
func (s *Snapshot) Len() int { return len(s.counters) }

// Delta returns the per-counter increase from prev to s. Counters
// absent from prev report their full value; counters that went
// backwards (a proxy restart) report zero.
func (s *Snapshot) Delta(prev *Snapshot) map[string]uint64 {
	out := make(map[string]uint64, len(s.counters))
	for name, cur := range s.counters {
		var old uint64
		if prev != nil {
			old = prev.counters[name]
		}
		if cur >= old {
			out[name] = cur - old
		} else {
			out[name] = 0
		}
	}
	return out
}
