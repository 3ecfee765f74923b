package source

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/getlogtx/logtx/pkg/fragment"
)

// Options are the reader controls applied between the raw stream and
// the dispatcher. Zero values disable each control.
type Options struct {
	// SkipFirst drops the first M fragments of the raw stream.
	SkipFirst int

	// StopAfter ends the stream after N fragments have passed the tag
	// filters. Zero means unbounded.
	StopAfter int

	// IncludeTag restricts the stream to fragments with this exact tag
	// name.
	IncludeTag string

	// ExcludeTag drops fragments with this exact tag name.
	ExcludeTag string

	// IncludeTagPattern restricts the stream to fragments whose tag
	// matches this regular expression.
	IncludeTagPattern string

	// ExcludeTagPattern drops fragments whose tag matches this regular
	// expression.
	ExcludeTagPattern string

	// IgnoreCase makes both the literal and pattern tag matches
	// case-insensitive.
	IgnoreCase bool
}

// filtered applies Options on top of an inner source.
type filtered struct {
	inner Source
	opts  Options

	includeRe *regexp.Regexp
	excludeRe *regexp.Regexp

	skipped   int
	delivered int
}

// Filtered wraps src with the given reader controls. It returns src
// unchanged when opts is the zero value.
func Filtered(src Source, opts Options) (Source, error) {
	if opts == (Options{}) {
		return src, nil
	}

	f := &filtered{inner: src, opts: opts}
	var err error
	if f.includeRe, err = compilePattern(opts.IncludeTagPattern, opts.IgnoreCase); err != nil {
		return nil, fmt.Errorf("include tag pattern: %w", err)
	}
	if f.excludeRe, err = compilePattern(opts.ExcludeTagPattern, opts.IgnoreCase); err != nil {
		return nil, fmt.Errorf("exclude tag pattern: %w", err)
	}
	return f, nil
}

func compilePattern(pat string, ignoreCase bool) (*regexp.Regexp, error) {
	if pat == "" {
		return nil, nil
	}
	if ignoreCase {
		pat = "(?i)" + pat
	}
	return regexp.Compile(pat)
}

// Next implements Source. The controls apply in stream order: skip
// first, then tag filters, with the stop-after count taken over the
// fragments that survive filtering.
func (f *filtered) Next() (fragment.Fragment, error) {
	for {
		if f.opts.StopAfter > 0 && f.delivered >= f.opts.StopAfter {
			return fragment.Fragment{}, ErrEndOfStream
		}

		frag, err := f.inner.Next()
		if err != nil {
			return fragment.Fragment{}, err
		}

		if f.skipped < f.opts.SkipFirst {
			f.skipped++
			continue
		}
		if !f.tagAllowed(frag.Tag) {
			continue
		}

		f.delivered++
		return frag, nil
	}
}

func (f *filtered) tagAllowed(tag string) bool {
	if f.opts.IncludeTag != "" && !f.tagEqual(tag, f.opts.IncludeTag) {
		return false
	}
	if f.opts.ExcludeTag != "" && f.tagEqual(tag, f.opts.ExcludeTag) {
		return false
	}
	if f.includeRe != nil && !f.includeRe.MatchString(tag) {
		return false
	}
	if f.excludeRe != nil && f.excludeRe.MatchString(tag) {
		return false
	}
	return true
}

func (f *filtered) tagEqual(a, b string) bool {
	if f.opts.IgnoreCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}
