package index

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Version is the index text format version written by WriteTo and the
// only one accepted by Read.
const Version = "1.0"

const versionHeader = "JarIndex-Version:"

// maxLineSize bounds a single index line.
const maxLineSize = 1 << 20

// Read parses index text.
//
// Lines before the first archive line are ignored, except a version header
// which must declare Version. After that, a line ending in a recognized
// archive suffix opens a new section, any other non-blank line names a key
// held by the current section, and blank lines are ignored. Archive order is
// retained.
func Read(r io.Reader) (*Index, error) {
	idx := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	current := ""
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if !utf8.ValidString(line) {
			return nil, fmt.Errorf("%w: line %d is not valid UTF-8", ErrIndexFormat, lineNo)
		}
		if current == "" {
			if v, ok := strings.CutPrefix(line, versionHeader); ok {
				if v = strings.TrimSpace(v); v != Version {
					return nil, fmt.Errorf("%w: version %q", ErrIndexFormat, v)
				}
				continue
			}
			if !IsArchiveName(line) {
				continue
			}
		}
		switch {
		case line == "":
		case IsArchiveName(line):
			current = line
			idx.declareArchive(current)
		default:
			idx.addPair(line, current)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexFormat, err)
	}
	return idx, nil
}

// WriteTo writes idx in the format accepted by Read: a version header, then
// one section per archive listing its keys, sections separated by blank
// lines. It fails with ErrIndexFormat, before writing anything, when a name
// would read back differently: an archive without an archive suffix, or a
// key that is empty or carries one (such as a root-level "inner.zip").
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	if err := idx.checkWritable(); err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	var n int64
	write := func(s string) error {
		m, err := bw.WriteString(s)
		n += int64(m)
		return err
	}

	if err := write(versionHeader + " " + Version + "\n\n"); err != nil {
		return n, err
	}
	for _, archive := range idx.archives {
		if err := write(archive + "\n"); err != nil {
			return n, err
		}
		for _, key := range idx.byArchive[archive] {
			if err := write(key + "\n"); err != nil {
				return n, err
			}
		}
		if err := write("\n"); err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

func (idx *Index) checkWritable() error {
	for _, archive := range idx.archives {
		if !IsArchiveName(archive) || strings.ContainsAny(archive, "\r\n") {
			return fmt.Errorf("%w: archive name %q cannot be written", ErrIndexFormat, archive)
		}
		for _, key := range idx.byArchive[archive] {
			if key == "" || IsArchiveName(key) || strings.ContainsAny(key, "\r\n") {
				return fmt.Errorf("%w: key %q of %s cannot be written", ErrIndexFormat, key, archive)
			}
		}
	}
	return nil
}
