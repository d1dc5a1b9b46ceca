package parser

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/core"
)

func TestIsSourceExtension(t *testing.T) {
	assert.True(t, IsSourceExtension("ts"))
	assert.True(t, IsSourceExtension("GO"))
	assert.False(t, IsSourceExtension("md"))
	assert.False(t, IsSourceExtension("png"))
	assert.False(t, IsSourceExtension(""))
}

func TestExtractDecodesSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/parse", r.URL.Path)

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ts", req.Extension)

		_ = json.NewEncoder(w).Encode(extractResponse{Symbols: []core.Symbol{
			{Kind: "function", Name: "login", Code: "function login() {}", StartLine: 1, EndLine: 3},
			{Kind: "class", Name: "Session", Code: "class Session {}", StartLine: 5, EndLine: 20},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), slog.New(slog.DiscardHandler))
	symbols, err := c.Extract(context.Background(), "function login() {}", "ts")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "login", symbols[0].Name)
	assert.Equal(t, "class", symbols[1].Kind)
}

func TestExtractEmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(extractResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), slog.New(slog.DiscardHandler))
	symbols, err := c.Extract(context.Background(), "plain text", "ts")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestExtractRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(extractResponse{Symbols: []core.Symbol{{Kind: "function", Name: "f"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), slog.New(slog.DiscardHandler))
	symbols, err := c.Extract(context.Background(), "x", "go")
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExtractFailsAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), slog.New(slog.DiscardHandler))
	_, err := c.Extract(context.Background(), "x", "go")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExtractionFailed))
	assert.Equal(t, int32(3), calls.Load())
}
