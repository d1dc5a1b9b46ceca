package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/genai"
	"github.com/reviewloop/reviewloop/internal/storage"
)

// DefaultTopK is the retrieval depth used when the caller passes 0.
const DefaultTopK = 10

// Retriever answers natural-language queries against the symbol index.
type Retriever struct {
	embedder genai.Embedder
	store    storage.VectorStore
	logger   *slog.Logger
}

// NewRetriever creates a context retriever.
func NewRetriever(embedder genai.Embedder, store storage.VectorStore, logger *slog.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds the query and returns up to topK symbol units for the
// repository, ordered by similarity descending. Zero matches is a valid
// result; errors are reserved for embedding or index failures.
func (r *Retriever) Retrieve(ctx context.Context, query, repoID string, topK int) ([]core.UnitMatch, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.store.Query(ctx, vector, repoID, core.UnitTypeSymbol, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	r.logger.Debug("context retrieved", "repo", repoID, "matches", len(matches))
	return matches, nil
}
