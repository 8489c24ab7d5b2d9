package locator

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// reserved marks the ASCII bytes that are percent-escaped in a path segment.
var reserved = func() (set [128]bool) {
	for _, c := range " <>%\"{}|\\^[]`" {
		set[c] = true
	}
	for c := range 0x20 {
		set[c] = true
	}
	set[0x7f] = true
	return set
}()

const hexDigits = "0123456789abcdef"

// EncodePath percent-escapes the reserved characters of a path segment.
//
// ASCII letters and digits are never escaped; "/" is kept as a separator.
// Characters above 0x7F are escaped byte by byte from their UTF-8 encoding.
func EncodePath(p string) string {
	n := 0
	for i := 0; i < len(p); i++ {
		if needsEscape(p[i]) {
			n++
		}
	}
	if n == 0 {
		return p
	}
	var b strings.Builder
	b.Grow(len(p) + 2*n)
	for i := 0; i < len(p); i++ {
		c := p[i]
		if !needsEscape(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xf])
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c >= 0x80 {
		return true
	}
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	return reserved[c]
}

// DecodePath reverses EncodePath. Escape sequences must be well formed and
// decode to valid UTF-8.
func DecodePath(p string) (string, error) {
	if !strings.Contains(p, "%") {
		return p, nil
	}
	buf := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c != '%' {
			buf = append(buf, c)
			continue
		}
		if i+2 >= len(p) {
			return "", fmt.Errorf("truncated escape at offset %d in %q", i, p)
		}
		hi, ok1 := unhex(p[i+1])
		lo, ok2 := unhex(p[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid escape %q in %q", p[i:i+3], p)
		}
		buf = append(buf, hi<<4|lo)
		i += 2
	}
	if !utf8.Valid(buf) {
		return "", errors.New("percent-encoded bytes are not valid UTF-8")
	}
	return string(buf), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// FileURL converts a local file path to an encoded "file:" URL suitable as
// a locator base.
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := EncodePath(filepath.ToSlash(abs))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file:" + p, nil
}

// FilePath returns the local path named by a "file:" URL base, decoding
// escapes. ok is false when base is not a file URL.
func FilePath(base string) (path string, ok bool, err error) {
	rest, found := cutPrefixFold(base, "file:")
	if !found {
		return "", false, nil
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return "", true, fmt.Errorf("%w: file URL without path %q", ErrMalformedLocator, base)
		}
		host := rest[:slash]
		if host != "" && !strings.EqualFold(host, "localhost") {
			return "", true, fmt.Errorf("%w: remote file host %q", ErrMalformedLocator, host)
		}
		rest = rest[slash:]
	}
	decoded, err := DecodePath(rest)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrMalformedLocator, err)
	}
	// "/C:/dir" is a drive-letter path.
	if len(decoded) > 2 && decoded[0] == '/' && decoded[2] == ':' {
		decoded = decoded[1:]
	}
	return filepath.FromSlash(decoded), true, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
