// Package index implements the repository indexing pipeline and the
// context retriever over the semantic code index.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/genai"
	"github.com/reviewloop/reviewloop/internal/parser"
	"github.com/reviewloop/reviewloop/internal/storage"
)

// Content ceilings before embedding. Symbols are small by nature; whole
// files get a larger budget.
const (
	maxSymbolBytes = 2000
	maxFileBytes   = 8000
)

// Failure records one unit or batch that was skipped during a run.
type Failure struct {
	Path   string `json:"path"`
	Symbol string `json:"symbol,omitempty"`
	Reason string `json:"reason"`
}

// Result is the outcome of one indexing run.
type Result struct {
	RepositoryID string    `json:"repositoryId"`
	UnitsIndexed int       `json:"unitsIndexed"`
	FilesSkipped int       `json:"filesSkipped"`
	Failures     []Failure `json:"failures,omitempty"`
}

// Pipeline turns a repository snapshot into indexed code units:
// extract symbols, embed, and batch-upsert into the vector store.
type Pipeline struct {
	extractor parser.Extractor
	embedder  genai.Embedder
	store     storage.VectorStore
	batchSize int
	logger    *slog.Logger
}

// NewPipeline creates an indexing pipeline. batchSize bounds each upsert
// payload; values below 1 default to 100.
func NewPipeline(extractor parser.Extractor, embedder genai.Embedder, store storage.VectorStore, batchSize int, logger *slog.Logger) *Pipeline {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// IndexRepository indexes one snapshot. Unit-level failures (one file's
// extraction, one embedding) are recorded and skipped, never aborting
// the run. Re-running with identical contents produces identical unit
// ids and vectors because ids are deterministic.
func (p *Pipeline) IndexRepository(ctx context.Context, repoID string, files []core.SnapshotFile) (*Result, error) {
	result := &Result{RepositoryID: repoID}
	var staged []core.CodeUnit

	for _, file := range files {
		ext := strings.TrimPrefix(filepath.Ext(file.Path), ".")
		if !parser.IsSourceExtension(ext) {
			result.FilesSkipped++
			continue
		}

		symbols, err := p.extractor.Extract(ctx, file.Content, ext)
		if err != nil {
			// Defined degraded mode: fall back to whole-file indexing.
			p.logger.Warn("symbol extraction failed, indexing whole file", "path", file.Path, "error", err)
			symbols = nil
		}

		if len(symbols) == 0 {
			unit, err := p.fileUnit(ctx, repoID, file)
			if err != nil {
				result.Failures = append(result.Failures, Failure{Path: file.Path, Reason: err.Error()})
				continue
			}
			staged = append(staged, *unit)
			continue
		}

		for _, sym := range symbols {
			unit, err := p.symbolUnit(ctx, repoID, file.Path, sym)
			if err != nil {
				result.Failures = append(result.Failures, Failure{Path: file.Path, Symbol: sym.Name, Reason: err.Error()})
				continue
			}
			staged = append(staged, *unit)
		}
	}

	for start := 0; start < len(staged); start += p.batchSize {
		end := min(start+p.batchSize, len(staged))
		batch := staged[start:end]
		if err := p.store.UpsertBatch(ctx, batch); err != nil {
			p.logger.Error("batch upsert failed", "repo", repoID, "batch_size", len(batch), "error", err)
			result.Failures = append(result.Failures, Failure{
				Path:   fmt.Sprintf("batch %d-%d", start, end),
				Reason: err.Error(),
			})
			continue
		}
		result.UnitsIndexed += len(batch)
	}

	p.logger.Info("indexing run finished",
		"repo", repoID,
		"units", result.UnitsIndexed,
		"skipped_files", result.FilesSkipped,
		"failures", len(result.Failures),
	)
	return result, nil
}

func (p *Pipeline) fileUnit(ctx context.Context, repoID string, file core.SnapshotFile) (*core.CodeUnit, error) {
	content := genai.Truncate("File: "+file.Path+"\n\n"+file.Content, maxFileBytes)

	embedding, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	return &core.CodeUnit{
		ID:        core.FileUnitID(repoID, file.Path),
		RepoID:    repoID,
		Path:      file.Path,
		UnitType:  core.UnitTypeFile,
		Content:   content,
		Embedding: embedding,
	}, nil
}

func (p *Pipeline) symbolUnit(ctx context.Context, repoID, path string, sym core.Symbol) (*core.CodeUnit, error) {
	if sym.Name == "" {
		return nil, fmt.Errorf("symbol without a name")
	}

	content := genai.Truncate(sym.Code, maxSymbolBytes)
	embedding, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	return &core.CodeUnit{
		ID:         core.SymbolUnitID(repoID, path, sym.Name),
		RepoID:     repoID,
		Path:       path,
		UnitType:   core.UnitTypeSymbol,
		SymbolName: sym.Name,
		SymbolKind: sym.Kind,
		StartLine:  sym.StartLine,
		EndLine:    sym.EndLine,
		Content:    content,
		Embedding:  embedding,
	}, nil
}
