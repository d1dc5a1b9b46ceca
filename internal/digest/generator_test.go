package digest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/genai"
)

func TestParseDigest(t *testing.T) {
	valid := `{"summary":"Shipped the new login flow.","securityScore":82,"codeQualityScore":88,"improvements":["Add rate limiting","Expand test coverage"]}`

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "bare json", raw: valid},
		{name: "json fence", raw: "```json\n" + valid + "\n```"},
		{name: "bare fence", raw: "```\n" + valid + "\n```"},
		{name: "fence with trailing prose stripped", raw: "```json\n" + valid + "\n```\n"},
		{name: "not json", raw: "Here is your summary: all good!", wantErr: true},
		{name: "score above range", raw: `{"summary":"s","securityScore":140,"codeQualityScore":50,"improvements":[]}`, wantErr: true},
		{name: "negative score", raw: `{"summary":"s","securityScore":10,"codeQualityScore":-1,"improvements":[]}`, wantErr: true},
		{name: "missing improvements", raw: `{"summary":"s","securityScore":10,"codeQualityScore":20}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDigest(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrMalformedDigest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Shipped the new login flow.", d.Summary)
			assert.Equal(t, 82, d.SecurityScore)
			assert.Equal(t, 88, d.CodeQualityScore)
			assert.Len(t, d.Improvements, 2)
		})
	}
}

func TestParseDigest_EmptyImprovementsIsValid(t *testing.T) {
	d, err := ParseDigest(`{"summary":"quiet week","securityScore":90,"codeQualityScore":90,"improvements":[]}`)
	require.NoError(t, err)
	assert.Empty(t, d.Improvements)
}

func TestFormatReviewContext(t *testing.T) {
	assert.Equal(t, "No recent pull request reviews available.", formatReviewContext(nil))

	out := formatReviewContext([]core.Review{
		{PRNumber: 7, PRTitle: "Add login", Body: "Looks good."},
		{PRNumber: 9, PRTitle: "Fix cache", Body: "One issue found."},
	})
	assert.Contains(t, out, "1. PR #7 - Add login\nReview: Looks good.")
	assert.Contains(t, out, "2. PR #9 - Fix cache\nReview: One issue found.")
}

type scriptedLLM struct {
	output string
	err    error
	prompt string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func TestGenerator_Summarize(t *testing.T) {
	prompts, err := genai.NewPromptManager()
	require.NoError(t, err)

	llm := &scriptedLLM{output: "```json\n{\"summary\":\"ok\",\"securityScore\":70,\"codeQualityScore\":75,\"improvements\":[\"a\"]}\n```"}
	g := NewGenerator(llm, prompts, discardLogger())

	d, err := g.Summarize(context.Background(), "acme/api", []core.Review{
		{PRNumber: 3, PRTitle: "Refactor", Body: "fine"},
	})
	require.NoError(t, err)
	assert.Equal(t, 70, d.SecurityScore)
	assert.Contains(t, llm.prompt, "acme/api")
	assert.Contains(t, llm.prompt, "PR #3 - Refactor")
}

func TestRenderEmail(t *testing.T) {
	html, err := RenderEmail("acme/api", &core.WeeklyDigest{
		Summary:          "Shipped <new> features.",
		SecurityScore:    80,
		CodeQualityScore: 85,
		Improvements:     []string{"Harden auth"},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "Weekly Report: acme/api")
	assert.Contains(t, html, "Project Updates")
	assert.Contains(t, html, "80/100")
	assert.Contains(t, html, "Harden auth")
	// Model output must be escaped.
	assert.Contains(t, html, "Shipped &lt;new&gt; features.")
}
