package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/casevault/casevault/pkg/caseupload"
)

// Backend is a filesystem implementation of the caseupload.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// Upload writes a blob directly to the filesystem. The MIME type is not
// stored; it lives in the relational record.
func (b *Backend) Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error {
	filePath := filepath.Join(b.baseDir, objectKey)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", caseupload.ErrWriteFailed, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: failed to create file: %v", caseupload.ErrWriteFailed, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("%w: failed to write file: %v", caseupload.ErrWriteFailed, err)
	}

	return nil
}

// Download reads a blob back
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(b.baseDir, objectKey))
	if os.IsNotExist(err) {
		return nil, errors.New("object not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// DeleteIfExists removes a blob if present. A missing key is not an error.
func (b *Backend) DeleteIfExists(ctx context.Context, objectKey string) (bool, error) {
	err := os.Remove(filepath.Join(b.baseDir, objectKey))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	return true, nil
}
