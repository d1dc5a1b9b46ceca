package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/runtime"
)

// FunctionName identifies the indexing function in the runtime.
const FunctionName = "index-repository"

// NewFunction wraps the pipeline as a runtime function triggered by
// repo.index.requested events. The whole run executes as a single
// memoized step so a re-delivered event does not re-embed the snapshot.
func NewFunction(pipeline *Pipeline, retries int) runtime.Function {
	return runtime.Function{
		Name:    FunctionName,
		Event:   core.EventIndexRequested,
		Retries: retries,
		Handler: func(ctx context.Context, run *runtime.Run, event runtime.Event) (any, error) {
			var payload core.IndexRequested
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				return nil, runtime.Fatal(fmt.Errorf("decoding index payload: %w", err))
			}
			if err := payload.Validate(); err != nil {
				return nil, runtime.Fatal(err)
			}

			return runtime.Step(ctx, run, "index-files", func(ctx context.Context) (*Result, error) {
				return pipeline.IndexRepository(ctx, payload.RepositoryID, payload.Files)
			})
		},
	}
}
