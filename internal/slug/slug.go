// Package slug derives URL slugs from titles.
package slug

import (
	"strings"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/promptvexity/internal/apperr"
)

const (
	maxLen   = 80
	fallback = "untitled"
	attempts = 5
)

// Make lowercases s, turns whitespace, dashes and underscores into single
// hyphens and drops every other non-alphanumeric character.
func Make(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '-', r == '_':
			pendingHyphen = true
		}
		if b.Len() >= maxLen {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "-")
	}
	if out == "" {
		return fallback
	}
	return out
}

func withSuffix(base string) string {
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Unique calls create with base and, while it fails with Conflict, with
// base plus a short random suffix.
func Unique[T any](base string, create func(slug string) (T, error)) (T, error) {
	candidate := base
	var (
		out T
		err error
	)
	for range attempts {
		out, err = create(candidate)
		if !apperr.Is(err, apperr.Conflict) {
			return out, err
		}
		candidate = withSuffix(base)
	}
	return out, err
}
