package storage

import (
	"context"
	"io"
)

// ImageUpload is one blob to be stored.
type ImageUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ObjectStore accepts uploaded blobs and returns stable references. The
// service stores only the references, never raw bytes.
type ObjectStore interface {
	Put(ctx context.Context, upload ImageUpload) (string, error)
}
