package locator

import "fmt"

// Builder assembles a nested locator from a base and successive entries.
// The zero value is not usable; create one with NewBuilder.
type Builder struct {
	proto Locator
}

// NewBuilder returns a Builder for base. The wrapper scheme defaults to
// SchemeZip; use WithScheme(SchemeJar) for the alternative.
func NewBuilder(base string, opts ...Option) *Builder {
	b := &Builder{proto: Locator{scheme: SchemeZip, base: base}}
	for _, opt := range opts {
		opt(&b.proto)
	}
	return b
}

// Add appends an entry path relative to the previous level. The last entry
// added is the target.
func (b *Builder) Add(entry string) *Builder {
	b.proto.entries = append(b.proto.entries, entry)
	return b
}

// Levels returns the number of nested levels below the base archive.
func (b *Builder) Levels() int {
	return len(b.proto.entries) - 1
}

// Locator returns the built locator.
func (b *Builder) Locator() (*Locator, error) {
	if len(b.proto.entries) == 0 {
		return nil, fmt.Errorf("%w: no entry defined", ErrMalformedLocator)
	}
	if b.proto.base == "" {
		return nil, fmt.Errorf("%w: empty base", ErrMalformedLocator)
	}
	for i, e := range b.proto.entries[:len(b.proto.entries)-1] {
		if e == "" {
			return nil, fmt.Errorf("%w: empty entry at level %d", ErrMalformedLocator, i)
		}
	}
	l := b.proto
	l.entries = append([]string(nil), b.proto.entries...)
	return &l, nil
}

// Build returns the serialized locator.
func (b *Builder) Build() (string, error) {
	l, err := b.Locator()
	if err != nil {
		return "", err
	}
	return l.String(), nil
}
