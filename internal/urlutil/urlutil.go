// Package urlutil joins URL fragments the way the preview server builds its links.
package urlutil

import "strings"

// Join concatenates base and the given parts, then collapses every run of
// slashes that is not part of a scheme separator ("://").
func Join(base string, parts ...string) string {
	joined := base
	for _, p := range parts {
		joined += "/" + p
	}

	var b strings.Builder
	b.Grow(len(joined))

	for i := 0; i < len(joined); i++ {
		c := joined[i]
		if c == '/' && i > 0 && joined[i-1] == '/' {
			// keep the second slash of "://"
			if i >= 2 && joined[i-2] == ':' {
				b.WriteByte(c)
			}
			continue
		}
		b.WriteByte(c)
	}

	return b.String()
}
