package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptManagerLoadsEmbeddedPrompts(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	out, err := pm.Render(CodeReviewPrompt, DefaultProvider, map[string]string{
		"Title":         "Add login endpoint",
		"Description":   "",
		"SymbolContext": "",
		"Diff":          "+func login() {}",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Add login endpoint")
	assert.Contains(t, out, "No description provided")
	assert.Contains(t, out, "No relevant symbols found")
	assert.Contains(t, out, "+func login() {}")
}

func TestPromptManagerUnknownProviderFallsBack(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	out, err := pm.Render(WeeklyDigestPrompt, ModelProvider("claude"), map[string]string{
		"RepoFullName":  "acme/widgets",
		"ReviewContext": "No recent pull request reviews available.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "acme/widgets")
	assert.Contains(t, out, "WEEKLY CLIENT-FACING SUMMARY")
}

func TestPromptManagerUnknownKey(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	_, err = pm.Render(PromptKey("missing"), DefaultProvider, nil)
	assert.Error(t, err)
}
