package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/core"
)

func TestRetrieve_ReturnsMatches(t *testing.T) {
	store := &fakeVectorStore{matches: []core.UnitMatch{
		{RepoID: "owner/repo", Path: "src/auth.ts", SymbolName: "login", Score: 0.91},
		{RepoID: "owner/repo", Path: "src/auth.ts", SymbolName: "logout", Score: 0.85},
	}}
	r := NewRetriever(&fakeEmbedder{}, store, discardLogger())

	matches, err := r.Retrieve(context.Background(), "how does auth work", "owner/repo", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "login", matches[0].SymbolName)
}

func TestRetrieve_NoMatchesIsNotError(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeVectorStore{}, discardLogger())

	matches, err := r.Retrieve(context.Background(), "anything", "empty/repo", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{failOn: "query"}, &fakeVectorStore{}, discardLogger())

	_, err := r.Retrieve(context.Background(), "query text", "owner/repo", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEmbeddingFailed))
}
