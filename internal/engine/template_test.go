package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("Summarize {{topic}} for a {{ audience }} reader. {{topic}}!", map[string]string{
		"topic":    "tides",
		"audience": "young",
	})
	require.NoError(t, err)
	assert.Equal(t, "Summarize tides for a young reader. tides!", out)

	out, err = Render("no placeholders", nil)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders", out)
}

func TestRenderMissing(t *testing.T) {
	_, err := Render("{{a}} and {{b}} and {{a}}", map[string]string{"x": "1"})
	require.ErrorIs(t, err, ErrMissingVariables)
	assert.Contains(t, err.Error(), "a, b")
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, ExtractVariables("{{b}} {{a}} {{b}}"))
	assert.Empty(t, ExtractVariables("plain"))
}
