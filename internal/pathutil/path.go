// Package pathutil provides helpers for slash-separated archive entry names.
package pathutil

import "strings"

// DirPrefix converts a directory name to the prefix its entries share.
// "", "." and "/" name the archive root and give the empty prefix.
func DirPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return ""
	}
	return dir + "/"
}

// Child extracts the immediate child of prefix from an entry name.
// ok is false when name lies outside prefix or names the directory itself.
// isDir reports whether the child has further path components.
func Child(name, prefix string) (child string, isDir, ok bool) {
	rel, found := strings.CutPrefix(name, prefix)
	if !found || rel == "" {
		return "", false, false
	}
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i], true, true
	}
	return rel, false, true
}
