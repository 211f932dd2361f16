// Package blobstore abstracts the remote object store used as the durable
// backing store for file bytes. The server never depends on a concrete
// store; everything goes through the Store capability so failure categories
// stay typed instead of being fished out of error strings.
package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotAuthorized    = errors.New("blobstore: not authorized")
	ErrObjectNotFound   = errors.New("blobstore: object not found")
	ErrObjectTooLarge   = errors.New("blobstore: object too large")
	ErrUnsupportedMedia = errors.New("blobstore: unsupported media")
)

// ProgressFunc receives the running byte count after each chunk. Total is
// -1 when the store cannot report a total up front.
type ProgressFunc func(transferred, total int64)

// ObjectMetadata travels with an upload so the remote copy stays
// identifiable independently of the local database.
type ObjectMetadata struct {
	Filename string
	Folder   string
}

// Store is the remote blob-store capability: chunked upload, chunked
// fetch, delete by id. Implementations must tolerate calls before
// authorization completes and fail them with ErrNotAuthorized.
type Store interface {
	Connect(ctx context.Context) error
	IsAuthorized(ctx context.Context) (bool, error)
	UploadChunked(ctx context.Context, r io.Reader, size int64, meta ObjectMetadata, progress ProgressFunc) (string, error)
	FetchChunked(ctx context.Context, objectID string, w io.Writer, progress ProgressFunc) (int64, error)
	DeleteByID(ctx context.Context, objectID string) error
	Close() error
}
