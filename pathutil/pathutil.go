// Package pathutil canonicalizes directory strings so they can be used as
// map keys. Every directory-indexed map in the client derives its key
// through Normalize, which collapses "C:\foo\", "C:/foo" and "C:/foo/"
// into a single form.
package pathutil

import "strings"

// Normalize converts backslashes to forward slashes and strips a single
// trailing slash (the root "/" is preserved). It returns ok=false for an
// empty path.
func Normalize(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	p := strings.ReplaceAll(path, "\\", "/")
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p, true
}

// MustNormalize is Normalize for callers that already validated the input.
// It returns the empty string for an empty path.
func MustNormalize(path string) string {
	p, _ := Normalize(path)
	return p
}

// IsDescendant reports whether child is dir itself or a path underneath it.
// Both arguments are normalized before comparison.
func IsDescendant(dir, child string) bool {
	d, ok := Normalize(dir)
	if !ok {
		return false
	}
	c, ok := Normalize(child)
	if !ok {
		return false
	}
	if d == c {
		return true
	}
	if d == "/" {
		return strings.HasPrefix(c, "/")
	}
	return strings.HasPrefix(c, d+"/")
}

// RebaseUnder remaps child from underneath oldRoot to underneath newRoot,
// preserving the relative suffix. If child is not under oldRoot it returns
// newRoot unchanged.
func RebaseUnder(oldRoot, newRoot, child string) string {
	o := MustNormalize(oldRoot)
	n := MustNormalize(newRoot)
	c := MustNormalize(child)
	if o == "" || c == o {
		return n
	}
	if strings.HasPrefix(c, o+"/") {
		return n + c[len(o):]
	}
	return n
}
