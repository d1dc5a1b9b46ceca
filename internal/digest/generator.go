// Package digest produces and delivers the weekly client-facing
// repository summaries.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/genai"
)

// maxReviewBodyBytes bounds each review body inside the summary prompt.
const maxReviewBodyBytes = 1000

// Summarizer produces one structured digest per repository.
type Summarizer interface {
	Summarize(ctx context.Context, repoFullName string, reviews []core.Review) (*core.WeeklyDigest, error)
}

// Generator implements Summarizer on top of the LLM. The model is asked
// for strict JSON; anything that does not parse and validate is a
// malformed digest, which is not retryable.
type Generator struct {
	llm     genai.Generator
	prompts *genai.PromptManager
	logger  *slog.Logger
}

// NewGenerator creates a digest generator.
func NewGenerator(llm genai.Generator, prompts *genai.PromptManager, logger *slog.Logger) *Generator {
	if llm == nil || prompts == nil {
		panic("digest generator requires an llm and a prompt manager")
	}
	return &Generator{llm: llm, prompts: prompts, logger: logger}
}

// Summarize renders the digest prompt over the recent reviews, runs the
// model, and parses the strict-JSON response. Responses wrapped in
// markdown code fences are unwrapped before parsing.
func (g *Generator) Summarize(ctx context.Context, repoFullName string, reviews []core.Review) (*core.WeeklyDigest, error) {
	prompt, err := g.prompts.Render(genai.WeeklyDigestPrompt, genai.DefaultProvider, map[string]string{
		"RepoFullName":  repoFullName,
		"ReviewContext": formatReviewContext(reviews),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering digest prompt: %w", err)
	}

	raw, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating digest for %s: %w", repoFullName, err)
	}

	return ParseDigest(raw)
}

// ParseDigest parses a model response into a validated WeeklyDigest.
// Violations wrap core.ErrMalformedDigest.
func ParseDigest(raw string) (*core.WeeklyDigest, error) {
	cleaned := genai.StripCodeFence(raw)

	var d core.WeeklyDigest
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedDigest, err)
	}

	if d.SecurityScore < 0 || d.SecurityScore > 100 {
		return nil, fmt.Errorf("%w: security score %d out of range", core.ErrMalformedDigest, d.SecurityScore)
	}
	if d.CodeQualityScore < 0 || d.CodeQualityScore > 100 {
		return nil, fmt.Errorf("%w: code quality score %d out of range", core.ErrMalformedDigest, d.CodeQualityScore)
	}
	if d.Improvements == nil {
		return nil, fmt.Errorf("%w: missing improvements list", core.ErrMalformedDigest)
	}
	return &d, nil
}

func formatReviewContext(reviews []core.Review) string {
	if len(reviews) == 0 {
		return "No recent pull request reviews available."
	}

	entries := make([]string, 0, len(reviews))
	for i, r := range reviews {
		entries = append(entries, fmt.Sprintf("%d. PR #%d - %s\nReview: %s",
			i+1, r.PRNumber, r.PRTitle, genai.Truncate(r.Body, maxReviewBodyBytes)))
	}
	return strings.Join(entries, "\n\n")
}
