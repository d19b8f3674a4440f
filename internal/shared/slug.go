package shared

import "strings"

// Slug lowercases s and reduces it to the characters allowed in a URL key.
// Anything outside [a-z0-9-] becomes a dash, runs of dashes collapse to one
// and leading/trailing dashes are stripped.
func Slug(s string) string {
	return slugify(s, false)
}

// SlugPath behaves like Slug but preserves '/' so hierarchical request
// paths keep their segments.
func SlugPath(s string) string {
	return slugify(s, true)
}

func slugify(s string, keepSlash bool) string {
	s = strings.ToLower(s)
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, byte(r))
		case keepSlash && r == '/':
			// Dashes never touch a segment boundary.
			if n := len(out); n > 0 && out[n-1] == '-' {
				out = out[:n-1]
			}
			out = append(out, '/')
		default:
			if n := len(out); n > 0 && out[n-1] != '-' && out[n-1] != '/' {
				out = append(out, '-')
			}
		}
	}
	return strings.Trim(string(out), "-")
}
