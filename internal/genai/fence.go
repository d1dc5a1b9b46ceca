package genai

import "strings"

// StripCodeFence removes a wrapping ``` code fence (with or without a
// language tag such as ```json or ```markdown) that models sometimes add
// around their output. Text without a wrapping fence is returned as-is.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	idx := strings.Index(trimmed, "\n")
	if idx < 0 {
		return trimmed
	}
	body := trimmed[idx+1:]

	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
