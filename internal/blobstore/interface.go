package blobstore

import (
	"context"
	"io"
)

// PutResult describes one persisted payload.
type PutResult struct {
	Locator   string
	SHA256    string
	SizeBytes int64
}

// BlobStore is the byte-storage abstraction behind attachment records.
// Locators are opaque relative keys; they are never shown to chat clients
// except inside a signed URL.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}
