// Package parser is the client for the external symbol-extraction
// service, which splits a source file into named functions and classes
// with line ranges.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/reviewloop/reviewloop/internal/core"
)

// sourceExtensions are the file extensions the parser service handles.
// Files outside this set are skipped, never sent.
var sourceExtensions = map[string]struct{}{
	"js": {}, "jsx": {}, "ts": {}, "tsx": {},
	"go": {}, "py": {}, "java": {}, "rb": {}, "rs": {},
	"c": {}, "h": {}, "cpp": {}, "hpp": {}, "cs": {}, "php": {},
}

// IsSourceExtension reports whether ext (without the dot) is a
// recognized source-code language extension.
func IsSourceExtension(ext string) bool {
	_, ok := sourceExtensions[strings.ToLower(ext)]
	return ok
}

// Extractor extracts symbols from a single file's source text.
type Extractor interface {
	Extract(ctx context.Context, sourceText, fileExtension string) ([]core.Symbol, error)
}

type extractRequest struct {
	Code      string `json:"code"`
	Extension string `json:"extension"`
}

type extractResponse struct {
	Symbols []core.Symbol `json:"symbols"`
}

// Client calls the parse endpoint over HTTP with a bounded retry budget.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a parser-service client. A nil httpClient gets a
// default with a 30-second timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		maxRetries: 3,
		logger:     logger,
	}
}

// Extract sends the file to the parser service. An empty symbol list is
// a valid result, not an error; callers fall back to whole-file indexing
// in that case. The error returned after the retry budget is exhausted
// wraps core.ErrExtractionFailed.
func (c *Client) Extract(ctx context.Context, sourceText, fileExtension string) ([]core.Symbol, error) {
	body, err := json.Marshal(extractRequest{Code: sourceText, Extension: fileExtension})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", core.ErrExtractionFailed, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * 500 * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailed, ctx.Err())
			}
		}

		symbols, err := c.doExtract(ctx, body)
		if err == nil {
			return symbols, nil
		}
		lastErr = err
		c.logger.Warn("parser service call failed", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailed, lastErr)
}

func (c *Client) doExtract(ctx context.Context, body []byte) ([]core.Symbol, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("parser service returned status %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding parser response: %w", err)
	}
	return out.Symbols, nil
}
