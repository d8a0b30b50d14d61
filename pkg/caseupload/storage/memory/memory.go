package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/casevault/casevault/pkg/caseupload"
)

// Backend is an in-memory implementation of the caseupload.BlobStore interface
type Backend struct {
	mu       sync.RWMutex
	blobs    map[string][]byte
	blobMime map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		blobs:    make(map[string][]byte),
		blobMime: make(map[string]string),
	}
}

// Upload writes a blob under the given key
func (b *Backend) Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("%w: %v", caseupload.ErrWriteFailed, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[objectKey] = data
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	b.blobMime[objectKey] = mimeType
	return nil
}

// Download reads a blob back
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// DeleteIfExists removes a blob if present. A missing key is not an error.
func (b *Backend) DeleteIfExists(ctx context.Context, objectKey string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[objectKey]; !exists {
		return false, nil
	}

	delete(b.blobs, objectKey)
	delete(b.blobMime, objectKey)
	return true, nil
}
