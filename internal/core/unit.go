package core

import "strings"

// Unit types stored in the vector index. A symbol unit represents one
// extracted function or class; a file unit represents a whole file for
// which no symbols could be extracted.
const (
	UnitTypeFile   = "file"
	UnitTypeSymbol = "symbol"
)

// Symbol kinds reported by the parser service.
const (
	SymbolKindFunction = "function"
	SymbolKindClass    = "class"
)

// Symbol is one named code symbol extracted from a source file.
type Symbol struct {
	Kind      string `json:"type"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// CodeUnit is the atomic indexed entity: one embedded chunk of source
// code at file or symbol granularity. Its ID is deterministic so that
// re-indexing the same unit overwrites instead of duplicating.
type CodeUnit struct {
	ID         string
	RepoID     string
	Path       string
	UnitType   string
	SymbolName string
	SymbolKind string
	StartLine  int
	EndLine    int
	Content    string
	Embedding  []float32
}

// UnitMatch is a retrieval result: the metadata of an indexed unit and
// its similarity score, higher is closer.
type UnitMatch struct {
	RepoID     string
	Path       string
	UnitType   string
	SymbolName string
	SymbolKind string
	StartLine  int
	EndLine    int
	Score      float64
}

// FileUnitID derives the deterministic index id for a file-level unit.
func FileUnitID(repoID, path string) string {
	return repoID + "-" + strings.ReplaceAll(path, "/", "_")
}

// SymbolUnitID derives the deterministic index id for a symbol unit.
// Re-running indexing for the same (repo, path, symbol) triple yields
// the same id, making the pipeline idempotent.
func SymbolUnitID(repoID, path, symbolName string) string {
	return FileUnitID(repoID, path) + "-" + symbolName
}
