package slug

import (
	"strings"
	"testing"

	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	tests := map[string]string{
		"SQL Generator":               "sql-generator",
		"  Summarise   legal_docs  ": "summarise-legal-docs",
		"Fix: JSON -> YAML!":          "fix-json-yaml",
		"Café menu":                   "caf-menu",
		"---":                         "untitled",
		"":                            "untitled",
		"v2.0 release notes":          "v20-release-notes",
	}
	for in, want := range tests {
		assert.Equal(t, want, Make(in), "input %q", in)
	}
}

func TestMakeTruncates(t *testing.T) {
	got := Make(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(got), maxLen)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestUniqueRetriesOnConflict(t *testing.T) {
	taken := map[string]bool{"sql-generator": true}
	var tried []string

	got, err := Unique("sql-generator", func(s string) (string, error) {
		tried = append(tried, s)
		if taken[s] {
			return "", apperr.Conflictf("slug %q taken", s)
		}
		return s, nil
	})
	require.NoError(t, err)
	assert.Len(t, tried, 2)
	assert.True(t, strings.HasPrefix(got, "sql-generator-"))
	assert.Len(t, got, len("sql-generator-")+6)
}

func TestUniqueStopsOnOtherErrors(t *testing.T) {
	calls := 0
	_, err := Unique("x", func(string) (int, error) {
		calls++
		return 0, apperr.Validationf("bad")
	})
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, 1, calls)
}

func TestUniqueGivesUp(t *testing.T) {
	calls := 0
	_, err := Unique("x", func(string) (int, error) {
		calls++
		return 0, apperr.Conflictf("taken")
	})
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, attempts, calls)
}
