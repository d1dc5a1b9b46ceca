package review

import (
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/internal/core"
)

// FormatSymbolContext renders retrieved symbol matches as the context
// block the review prompt embeds. An empty slice yields an empty string,
// letting the template fall back to its placeholder.
func FormatSymbolContext(matches []core.UnitMatch) string {
	if len(matches) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf(
			"File: %s\nSymbol: %s\nType: %s\nLines: %d-%d",
			m.Path, m.SymbolName, m.SymbolKind, m.StartLine, m.EndLine,
		))
	}
	return strings.Join(blocks, "\n\n")
}
