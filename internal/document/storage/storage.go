// Package storage is the thin byte-store collaborator. The core never reads
// or writes document bytes except through BlobStore.
package storage

import (
	"context"
	"io"
	"time"
)

// BlobStore stores and retrieves document bytes by opaque key.
type BlobStore interface {
	// Put uploads body under key. size must match the body length.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// PresignGet returns a time-limited URL from which the bytes can be fetched
	// directly, so downloads never stream through the API process.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	// Delete removes the object. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
