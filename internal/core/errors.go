package core

import "errors"

// Sentinel errors shared across the pipelines. Wrap them with
// fmt.Errorf("%w: ...") and test with errors.Is; the runtime and the
// orchestrators branch on them to decide fatal versus retry versus
// benign skip.
var (
	// ErrExtractionFailed reports that the parser service could not
	// extract symbols after its retry budget. Indexing degrades to a
	// whole-file unit.
	ErrExtractionFailed = errors.New("symbol extraction failed")

	// ErrEmbeddingFailed reports a failed embedding call. The affected
	// unit is skipped and recorded; the run continues.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrIndexUpsertFailed reports a failed vector-index write.
	ErrIndexUpsertFailed = errors.New("vector index upsert failed")

	// ErrNoCredential means the user has no stored source-control token.
	// Fatal: retrying cannot conjure a credential.
	ErrNoCredential = errors.New("no source-control credential")

	// ErrDiffFetchFailed reports that pull request data could not be
	// fetched. Retryable.
	ErrDiffFetchFailed = errors.New("pull request fetch failed")

	// ErrMalformedDigest means the model's digest response failed JSON
	// parsing or validation. Fatal for that repository's run; the same
	// response would fail identically on every retry.
	ErrMalformedDigest = errors.New("malformed digest response")

	// ErrSendFailed reports a failed email delivery to one recipient.
	ErrSendFailed = errors.New("email send failed")

	// ErrRepositoryNotFound is a benign skip: the repository is not
	// registered.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrNoClientsMapped is a benign skip: the repository has no digest
	// recipients.
	ErrNoClientsMapped = errors.New("no clients mapped to repository")
)
