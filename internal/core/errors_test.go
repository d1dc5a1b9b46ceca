package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrExtractionFailed,
		ErrEmbeddingFailed,
		ErrIndexUpsertFailed,
		ErrNoCredential,
		ErrDiffFetchFailed,
		ErrMalformedDigest,
		ErrSendFailed,
		ErrRepositoryNotFound,
		ErrNoClientsMapped,
	}

	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("%w: extra context", sentinel)
		assert.True(t, errors.Is(wrapped, sentinel), "wrapping must preserve %v", sentinel)
	}

	// The taxonomy must stay disjoint: matching one sentinel must never
	// match another.
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(fmt.Errorf("%w: ctx", a), b))
		}
	}
}
