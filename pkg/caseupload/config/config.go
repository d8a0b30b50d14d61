// Package config assembles a caseupload.Service from declarative server
// configuration.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casevault/casevault/pkg/caseupload"
	"github.com/casevault/casevault/pkg/caseupload/blobkey"
	repomem "github.com/casevault/casevault/pkg/caseupload/repo/memory"
	repopg "github.com/casevault/casevault/pkg/caseupload/repo/postgres"
	fsstorage "github.com/casevault/casevault/pkg/caseupload/storage/fs"
	memorystorage "github.com/casevault/casevault/pkg/caseupload/storage/memory"
	s3storage "github.com/casevault/casevault/pkg/caseupload/storage/s3"
	"github.com/casevault/casevault/pkg/caseupload/validate"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		Storage: StorageConfig{
			Type: "memory",
		},
		UploadPolicy: validate.Policy{
			AllowedExtensions: []string{"pdf", "doc", "xls", "png", "jpg", "tif", "html", "prj", "gis", "dbf", "shp", "shx"},
			AllowedMimeTypes: []string{
				"application/pdf", "application/msword", "application/vnd.ms-excel",
				"image/png", "image/jpeg", "image/tiff",
				"text/html", "text/plain",
			},
			MaxFileSizeBytes: 25 << 20,
		},
		SessionQuotaBytes: 100 << 20,
		ShardedBlobKeys:   false,
	}
}

// ServerConfig represents server configuration for the upload service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	Storage StorageConfig

	// Upload policy handed to the validator on every request
	UploadPolicy      validate.Policy
	SessionQuotaBytes int64

	// ShardedBlobKeys enables Git-style sharding under the case prefix
	ShardedBlobKeys bool

	// RunMigrations applies pending schema migrations on startup
	RunMigrations bool
}

// StorageConfig represents configuration for the blob storage backend
type StorageConfig struct {
	Type string // "memory", "fs", "s3"

	// fs
	BaseDir string

	// s3
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.UploadPolicy.MaxFileSizeBytes <= 0 {
		return errors.New("max file size must be positive")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context) (caseupload.Service, error) {
	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildStorageBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	var keys blobkey.Generator = blobkey.NewCaseScopedGenerator()
	if c.ShardedBlobKeys {
		keys = blobkey.NewShardedGenerator()
	}

	return caseupload.New(
		caseupload.WithRepository(repo),
		caseupload.WithBlobStore(store),
		caseupload.WithBlobKeyGenerator(keys),
	)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (caseupload.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomem.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorageBackend creates a BlobStore based on the configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context) (caseupload.BlobStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BaseDir})

	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:          c.Storage.Region,
			Bucket:          c.Storage.Bucket,
			AccessKeyID:     c.Storage.AccessKeyID,
			SecretAccessKey: c.Storage.SecretAccessKey,
			Endpoint:        c.Storage.Endpoint,
			UsePathStyle:    c.Storage.UsePathStyle,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}
