package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/core"
)

type fakeExtractor struct {
	symbols map[string][]core.Symbol
	fail    map[string]bool
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, sourceText, _ string) ([]core.Symbol, error) {
	f.calls++
	if f.fail[sourceText] {
		return nil, core.ErrExtractionFailed
	}
	return f.symbols[sourceText], nil
}

type fakeEmbedder struct {
	failOn string
	calls  []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, core.ErrEmbeddingFailed
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeVectorStore struct {
	upserted []core.CodeUnit
	batches  int
	failErr  error
	matches  []core.UnitMatch
	queryErr error
}

func (f *fakeVectorStore) UpsertBatch(_ context.Context, units []core.CodeUnit) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.batches++
	f.upserted = append(f.upserted, units...)
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, _ []float32, _, _ string, _ int) ([]core.UnitMatch, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIndexRepository_MixedSnapshot(t *testing.T) {
	// One file with two symbols, one source file with none, one
	// unsupported file that must not reach the extractor, and one
	// file whose extraction fails and degrades to whole-file.
	extractor := &fakeExtractor{
		symbols: map[string][]core.Symbol{
			"func a() {}\nfunc b() {}": {
				{Kind: core.SymbolKindFunction, Name: "validateToken", Code: "func a() {}", StartLine: 1, EndLine: 1},
				{Kind: core.SymbolKindClass, Name: "SessionStore", Code: "func b() {}", StartLine: 2, EndLine: 2},
			},
		},
		fail: map[string]bool{"broken source": true},
	}
	store := &fakeVectorStore{}
	pipeline := NewPipeline(extractor, &fakeEmbedder{}, store, 100, discardLogger())

	result, err := pipeline.IndexRepository(context.Background(), "repo-1", []core.SnapshotFile{
		{Path: "src/auth/login.ts", Content: "func a() {}\nfunc b() {}"},
		{Path: "src/util.ts", Content: "export const x = 1"},
		{Path: "README.md", Content: "# readme"},
		{Path: "src/legacy.ts", Content: "broken source"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.UnitsIndexed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Empty(t, result.Failures)
	require.Len(t, store.upserted, 4)

	byID := make(map[string]core.CodeUnit, len(store.upserted))
	for _, u := range store.upserted {
		byID[u.ID] = u
	}

	sym, ok := byID["repo-1-src_auth_login.ts-validateToken"]
	require.True(t, ok, "symbol unit id must be deterministic")
	assert.Equal(t, core.UnitTypeSymbol, sym.UnitType)
	assert.Equal(t, core.SymbolKindFunction, sym.SymbolKind)
	assert.Equal(t, 1, sym.StartLine)

	file, ok := byID["repo-1-src_util.ts"]
	require.True(t, ok)
	assert.Equal(t, core.UnitTypeFile, file.UnitType)
	assert.True(t, strings.HasPrefix(file.Content, "File: src/util.ts\n\n"))

	degraded, ok := byID["repo-1-src_legacy.ts"]
	require.True(t, ok, "extraction failure must degrade to a file unit")
	assert.Equal(t, core.UnitTypeFile, degraded.UnitType)
}

func TestIndexRepository_Idempotent(t *testing.T) {
	extractor := &fakeExtractor{
		symbols: map[string][]core.Symbol{
			"code": {{Kind: core.SymbolKindFunction, Name: "handler", Code: "code", StartLine: 1, EndLine: 3}},
		},
	}
	store := &fakeVectorStore{}
	pipeline := NewPipeline(extractor, &fakeEmbedder{}, store, 100, discardLogger())
	files := []core.SnapshotFile{{Path: "main.go", Content: "code"}}

	for range 2 {
		_, err := pipeline.IndexRepository(context.Background(), "repo-9", files)
		require.NoError(t, err)
	}

	require.Len(t, store.upserted, 2)
	assert.Equal(t, store.upserted[0].ID, store.upserted[1].ID)
}

func TestIndexRepository_EmbedFailureSkipsUnit(t *testing.T) {
	extractor := &fakeExtractor{
		symbols: map[string][]core.Symbol{
			"code": {
				{Kind: core.SymbolKindFunction, Name: "good", Code: "good code"},
				{Kind: core.SymbolKindFunction, Name: "bad", Code: "poisoned code"},
			},
		},
	}
	store := &fakeVectorStore{}
	pipeline := NewPipeline(extractor, &fakeEmbedder{failOn: "poisoned"}, store, 100, discardLogger())

	result, err := pipeline.IndexRepository(context.Background(), "repo-2", []core.SnapshotFile{
		{Path: "a.py", Content: "code"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.UnitsIndexed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad", result.Failures[0].Symbol)
}

func TestIndexRepository_BatchesUpserts(t *testing.T) {
	symbols := make([]core.Symbol, 0, 5)
	for i := range 5 {
		symbols = append(symbols, core.Symbol{
			Kind: core.SymbolKindFunction,
			Name: fmt.Sprintf("fn%d", i),
			Code: "body",
		})
	}
	extractor := &fakeExtractor{symbols: map[string][]core.Symbol{"code": symbols}}
	store := &fakeVectorStore{}
	pipeline := NewPipeline(extractor, &fakeEmbedder{}, store, 2, discardLogger())

	result, err := pipeline.IndexRepository(context.Background(), "repo-3", []core.SnapshotFile{
		{Path: "big.go", Content: "code"},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.UnitsIndexed)
	assert.Equal(t, 3, store.batches)
}

func TestIndexRepository_UpsertFailureRecorded(t *testing.T) {
	extractor := &fakeExtractor{
		symbols: map[string][]core.Symbol{
			"code": {{Kind: core.SymbolKindFunction, Name: "fn", Code: "body"}},
		},
	}
	store := &fakeVectorStore{failErr: core.ErrIndexUpsertFailed}
	pipeline := NewPipeline(extractor, &fakeEmbedder{}, store, 100, discardLogger())

	result, err := pipeline.IndexRepository(context.Background(), "repo-4", []core.SnapshotFile{
		{Path: "a.go", Content: "code"},
	})
	require.NoError(t, err)

	assert.Zero(t, result.UnitsIndexed)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, core.ErrIndexUpsertFailed.Error())
}

func TestIndexRepository_TruncatesLongContent(t *testing.T) {
	longCode := strings.Repeat("x", 3000)
	extractor := &fakeExtractor{
		symbols: map[string][]core.Symbol{
			longCode: {{Kind: core.SymbolKindFunction, Name: "huge", Code: longCode}},
		},
	}
	store := &fakeVectorStore{}
	embedder := &fakeEmbedder{}
	pipeline := NewPipeline(extractor, embedder, store, 100, discardLogger())

	_, err := pipeline.IndexRepository(context.Background(), "repo-5", []core.SnapshotFile{
		{Path: "huge.go", Content: longCode},
	})
	require.NoError(t, err)

	require.Len(t, store.upserted, 1)
	assert.Len(t, store.upserted[0].Content, maxSymbolBytes)
}
