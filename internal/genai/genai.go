// Package genai wraps the Gemini models behind the two narrow
// interfaces the pipelines need: free-text generation and embeddings.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/reviewloop/reviewloop/internal/core"
)

// MaxEmbedInputBytes bounds the text submitted to the embedding model.
// The model has a hard input-size limit; silently truncating is
// preferable to failing the whole unit.
const MaxEmbedInputBytes = 8000

// Generator produces free-form text from a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client implements Generator and Embedder on top of Genkit with the
// Google AI plugin. Constructed once per process and shared.
type Client struct {
	g        *genkit.Genkit
	model    string
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewClient initializes Genkit with the Google AI plugin and registers
// the generator and embedder models.
func NewClient(ctx context.Context, apiKey, generatorModel, embedderModel string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: apiKey}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit with googleai plugin")
	}

	return &Client{
		g:        g,
		model:    generatorModel,
		embedder: googlegenai.GoogleAIEmbedder(g, embedderModel),
		logger:   logger,
	}, nil
}

// Generate runs the generator model on a single prompt and returns the
// raw text. Output structure is the caller's concern; the response is
// treated as opaque markdown here.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("model generation failed: %w", err)
	}
	return resp.Text(), nil
}

// Embed truncates text to MaxEmbedInputBytes and returns its embedding
// vector. Failures wrap core.ErrEmbeddingFailed.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text, MaxEmbedInputBytes)

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: provider returned no embedding", core.ErrEmbeddingFailed)
	}
	return resp.Embeddings[0].Embedding, nil
}

// Truncate bounds s to at most max bytes without splitting a multi-byte
// rune at the cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
