package locator

import (
	"fmt"
	"strings"
)

// Parse parses a locator string.
//
// Leading wrapper-scheme tokens ("zip:" or "jar:") are counted with a cursor;
// each one opens a nesting level that must be closed by exactly one "!/"
// separator in the remainder. A string with neither scheme tokens nor
// separators is returned as a plain resource.
//
// Entry names are percent-decoded. An empty final entry names the archive
// itself; empty intermediate entries are rejected.
func Parse(s string, opts ...Option) (*Locator, error) {
	l := &Locator{}
	for _, opt := range opts {
		opt(l)
	}
	l.scheme = ""

	pos, levels := 0, 0
	for {
		colon := strings.IndexByte(s[pos:], ':')
		if colon <= 0 || !isWrapperScheme(s[pos:pos+colon]) {
			break
		}
		if levels == 0 {
			l.scheme = strings.ToLower(s[pos : pos+colon])
		}
		levels++
		pos += colon + 1
	}

	rest := s[pos:]
	if rest == "" {
		return nil, fmt.Errorf("%w: empty base in %q", ErrMalformedLocator, s)
	}
	seps := strings.Count(rest, Separator)
	if levels == 0 && seps == 0 {
		l.base = rest
		return l, nil
	}
	if levels != seps {
		return nil, fmt.Errorf("%w: %d scheme prefixes but %d separators in %q",
			ErrMalformedLocator, levels, seps, s)
	}

	l.entries = make([]string, 0, seps)
	cursor := strings.Index(rest, Separator)
	l.base = rest[:cursor]
	if l.base == "" {
		return nil, fmt.Errorf("%w: empty base in %q", ErrMalformedLocator, s)
	}
	for cursor >= 0 {
		start := cursor + len(Separator)
		next := strings.Index(rest[start:], Separator)
		var raw string
		if next < 0 {
			raw = rest[start:]
			cursor = -1
		} else {
			raw = rest[start : start+next]
			cursor = start + next
		}
		if raw == "" && cursor >= 0 {
			return nil, fmt.Errorf("%w: empty intermediate entry in %q", ErrMalformedLocator, s)
		}
		name, err := DecodePath(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLocator, err)
		}
		l.entries = append(l.entries, name)
	}
	return l, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// static locators.
func MustParse(s string, opts ...Option) *Locator {
	l, err := Parse(s, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
