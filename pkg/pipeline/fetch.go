package pipeline

import (
	"context"

	"github.com/frankdugan3/typstflow/pkg/session"
)

// Query is the runtime fetch request handed to a Fetcher: the spec's
// static statement plus the invocation's bound arguments and execution
// context.
type Query struct {
	Statement string
	Args      map[string]any

	// Actor and Scope identify the caller and constrain what the fetch
	// may see. Their interpretation belongs to the Fetcher.
	Actor string
	Scope string

	// Limit caps a many-fetch. Zero means unlimited.
	Limit int
}

// Fetcher retrieves the records a pipeline injects into templates.
// Implementations must honor context cancellation.
type Fetcher interface {
	// FetchOne retrieves a single optional record. ok is false when no
	// record matched; that is not an error at this layer.
	FetchOne(ctx context.Context, q Query) (record any, ok bool, err error)

	// FetchMany retrieves an ordered sequence of records as a cursor.
	// An empty result is valid data, never a not-found condition.
	FetchMany(ctx context.Context, q Query) (session.Cursor, error)
}
