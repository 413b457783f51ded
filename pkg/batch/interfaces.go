package batch

import (
	"context"
	"net/http"

	"prodfetch/pkg/items"
	"prodfetch/pkg/product"
	"prodfetch/pkg/storage"
)

// ProductFetcher looks up one item code. A nil Result with a nil error
// means the product is unavailable.
type ProductFetcher interface {
	Fetch(ctx context.Context, code string, endpoints []product.Endpoint) (*product.Result, error)
}

// ImageDownloader stores the images of one item and returns their refs
type ImageDownloader interface {
	Download(ctx context.Context, code string, images []product.Image, headers http.Header) []storage.ArtifactRef
}

// CheckpointStore is the durable log of processed items
type CheckpointStore interface {
	LoadProcessed() map[string]bool
	Append(code string, refs []storage.ArtifactRef) error
	Path() string
}

// ItemSource provides the input list
type ItemSource interface {
	Load() ([]items.Row, error)
}

// Syncer publishes the checkpoint file somewhere durable
type Syncer interface {
	Sync(ctx context.Context, path string) error
}
