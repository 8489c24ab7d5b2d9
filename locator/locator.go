// Package locator parses and builds nested archive locators.
//
// A nested locator addresses an entry reachable through one or more levels
// of archive containment. The wrapper scheme is repeated once per level:
//
//	zip:zip:file:/srv/outer.zip!/dir/inner.zip!/data.txt
//
// reads as "the entry data.txt inside dir/inner.zip inside /srv/outer.zip".
// A string with no wrapper scheme and no "!/" separator is a plain resource.
package locator

import (
	"errors"
	"slices"
	"strings"
)

// ErrMalformedLocator is returned when a locator string cannot be parsed or
// a locator is built without any entry.
var ErrMalformedLocator = errors.New("locator: malformed locator")

// Separator delimits the steps of a nested locator.
const Separator = "!/"

// Wrapper schemes.
const (
	SchemeZip = "zip"
	SchemeJar = "jar"
)

// Locator is an immutable, parsed nested locator.
//
// Step 0 is the base location; each following step is an entry name
// relative to the archive named by the previous step.
type Locator struct {
	scheme     string
	base       string
	entries    []string
	firstEntry bool
	decompress bool
}

// Option configures how a Locator is parsed or built.
type Option func(*Locator)

// WithFirstEntry makes every nested level match the first entry of its
// archive instead of the named entry.
func WithFirstEntry() Option {
	return func(l *Locator) {
		l.firstEntry = true
	}
}

// WithDecompress enables transparent decompression of a target entry whose
// name carries a recognized compressed suffix.
func WithDecompress() Option {
	return func(l *Locator) {
		l.decompress = true
	}
}

// WithScheme selects the wrapper scheme used by a Builder.
// It has no effect on Parse, which takes the scheme from the string.
func WithScheme(scheme string) Option {
	return func(l *Locator) {
		l.scheme = strings.ToLower(scheme)
	}
}

// Scheme returns the wrapper scheme, or "" for a plain resource.
func (l *Locator) Scheme() string { return l.scheme }

// Base returns the base location (step 0).
func (l *Locator) Base() string { return l.base }

// Entries returns the decoded entry names, outermost first.
func (l *Locator) Entries() []string { return slices.Clone(l.entries) }

// Steps returns the base followed by every entry name.
func (l *Locator) Steps() []string {
	steps := make([]string, 0, len(l.entries)+1)
	steps = append(steps, l.base)
	return append(steps, l.entries...)
}

// Nested reports whether the locator addresses content inside an archive.
func (l *Locator) Nested() bool { return len(l.entries) > 0 }

// Levels returns the number of nested archive levels below the base archive,
// that is len(Entries()) - 1. A plain resource has -1 levels.
func (l *Locator) Levels() int { return len(l.entries) - 1 }

// Target returns the name of the final entry. It is empty when the locator
// is a plain resource or names an archive without an entry.
func (l *Locator) Target() string {
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1]
}

// HasTarget reports whether the locator names an entry to read.
func (l *Locator) HasTarget() bool {
	return l.firstEntry && len(l.entries) > 0 || l.Target() != ""
}

// FirstEntry reports whether levels match their first entry.
func (l *Locator) FirstEntry() bool { return l.firstEntry }

// Decompress reports whether transparent decompression is enabled.
func (l *Locator) Decompress() bool { return l.decompress }

// Parent returns the locator of the archive holding the target entry.
// For a single-level locator it is the plain base resource.
// It returns nil for a plain resource.
func (l *Locator) Parent() *Locator {
	switch len(l.entries) {
	case 0:
		return nil
	case 1:
		return &Locator{base: l.base, firstEntry: l.firstEntry, decompress: l.decompress}
	}
	c := *l
	c.entries = slices.Clone(l.entries[:len(l.entries)-1])
	return &c
}

// WithTarget returns a copy of the locator whose final entry is replaced.
func (l *Locator) WithTarget(name string) *Locator {
	c := *l
	c.entries = slices.Clone(l.entries)
	if len(c.entries) == 0 {
		if c.scheme == "" {
			c.scheme = SchemeZip
		}
		c.entries = append(c.entries, name)
		return &c
	}
	c.entries[len(c.entries)-1] = name
	return &c
}

// Child returns a copy of the locator with name appended as a new final
// entry. An empty name makes the child address the current target as an
// archive.
func (l *Locator) Child(name string) *Locator {
	c := *l
	c.entries = append(slices.Clone(l.entries), name)
	if c.scheme == "" {
		c.scheme = SchemeZip
	}
	return &c
}

// Equal reports whether two locators describe the same steps and flags.
func (l *Locator) Equal(o *Locator) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.scheme == o.scheme &&
		l.base == o.base &&
		l.firstEntry == o.firstEntry &&
		l.decompress == o.decompress &&
		slices.Equal(l.entries, o.entries)
}

// String serializes the locator. A plain resource serializes to its base.
func (l *Locator) String() string {
	if len(l.entries) == 0 {
		return l.base
	}
	var b strings.Builder
	for range l.entries {
		b.WriteString(l.scheme)
		b.WriteByte(':')
	}
	b.WriteString(l.base)
	for _, e := range l.entries {
		b.WriteString(Separator)
		b.WriteString(EncodePath(e))
	}
	return b.String()
}

func isWrapperScheme(s string) bool {
	return strings.EqualFold(s, SchemeZip) || strings.EqualFold(s, SchemeJar)
}
