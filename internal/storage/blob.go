package storage

import (
	"context"
	"io"
)

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string) (string, error) // fs returns "file://..." for dev
}
