package ports

import (
	"context"

	"artifact-sync-service/internal/core/domain"
)

// TransportResponse is the raw result of a completed downstream call.
type TransportResponse struct {
	StatusCode int
	Body       []byte
}

// IndexerClient posts sync batches to the downstream indexing service.
//
// A non-nil error means the call never completed (dial failure, timeout,
// cancelled context, unencodable batch). Every completed call returns a
// response, whatever its status code; classifying it is up to the caller.
type IndexerClient interface {
	PostBatch(ctx context.Context, batch domain.SyncBatch) (*TransportResponse, error)
	Endpoint() string
}
