package prompt

import (
	"testing"

	"github.com/nikhilbhutani/promptvexity/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	got, err := Render("Write SQL for {{question}} against {{ schema }}.", map[string]string{
		"question": "monthly revenue",
		"schema":   "orders(id, total, created_at)",
	})
	require.NoError(t, err)
	assert.Equal(t, "Write SQL for monthly revenue against orders(id, total, created_at).", got)
}

func TestRenderMissingVariables(t *testing.T) {
	_, err := Render("{{a}} and {{b}} and {{a}}", map[string]string{"a": "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, "missing_variables", apperr.CodeOf(err))
	assert.Contains(t, apperr.MessageOf(err), "b")
}

func TestRenderWithoutPlaceholders(t *testing.T) {
	got, err := Render("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"dialect", "question", "schema"},
		ExtractVariables("You write {{dialect}} SQL.", "Q: {{question}} S: {{schema}} {{ dialect }}"))
	assert.Equal(t, []string{}, ExtractVariables("none here", ""))
}
