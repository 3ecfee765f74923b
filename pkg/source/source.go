package source

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/getlogtx/logtx/pkg/fragment"
)

// ErrEndOfStream signals that a source has no more fragments. It is
// the normal termination condition for a dispatch loop, not a fault.
var ErrEndOfStream = errors.New("end of fragment stream")

// Source is a pull-driven fragment stream.
type Source interface {
	// Next returns the next fragment in arrival order, or
	// ErrEndOfStream once the source is exhausted. Any other error is
	// an I/O fault in the source itself.
	Next() (fragment.Fragment, error)
}

// SliceSource replays an in-memory fragment sequence. Useful for
// fixtures and tests.
type SliceSource struct {
	frags []fragment.Fragment
	pos   int
}

// NewSliceSource returns a source over the given fragments.
func NewSliceSource(frags []fragment.Fragment) *SliceSource {
	return &SliceSource{frags: frags}
}

// Next implements Source.
func (s *SliceSource) Next() (fragment.Fragment, error) {
	if s.pos >= len(s.frags) {
		return fragment.Fragment{}, ErrEndOfStream
	}
	f := s.frags[s.pos]
	s.pos++
	return f, nil
}

// FileSource replays a persisted fragment dump: one JSON-encoded
// fragment per line. Blank lines are skipped.
type FileSource struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// Open opens a JSONL fragment dump for replay.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fragment dump: %w", err)
	}
	return NewFileSource(f), nil
}

// NewFileSource reads JSONL fragments from rc, taking ownership of it.
func NewFileSource(rc io.ReadCloser) *FileSource {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &FileSource{rc: rc, scanner: sc}
}

// Next implements Source.
func (s *FileSource) Next() (fragment.Fragment, error) {
	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f fragment.Fragment
		if err := json.Unmarshal(line, &f); err != nil {
			return fragment.Fragment{}, fmt.Errorf("fragment dump line %d: %w", s.line, err)
		}
		return f, nil
	}
	if err := s.scanner.Err(); err != nil {
		return fragment.Fragment{}, fmt.Errorf("read fragment dump: %w", err)
	}
	return fragment.Fragment{}, ErrEndOfStream
}

// Close closes the underlying reader.
func (s *FileSource) Close() error {
	return s.rc.Close()
}
