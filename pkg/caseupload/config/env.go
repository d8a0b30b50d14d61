package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
//	PORT        - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
//	DATABASE_URL - "memory" (default) or a postgresql:// connection string
//
//	STORAGE_URL - one of:
//	              "memory://" - in-memory storage (default)
//	              "file:///path/to/data" - filesystem storage
//	              "s3://bucket?region=us-east-1&endpoint=..." - S3 storage
//	              S3 credentials come from AWS_ACCESS_KEY_ID /
//	              AWS_SECRET_ACCESS_KEY or the default credential chain.
//
//	MAX_FILE_SIZE_BYTES  - per-file validation limit
//	SESSION_QUOTA_BYTES  - total staged bytes per session+case (0 disables)
//	RUN_MIGRATIONS       - "true" to apply schema migrations on startup
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}
		return applyPolicyEnv(prefix, c)
	}
}

func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")
	if !hasURL || storageURL == "" || storageURL == "memory://" {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "memory":
		c.Storage = StorageConfig{Type: "memory"}
	case "file":
		c.Storage = StorageConfig{Type: "fs", BaseDir: u.Path}
	case "s3":
		q := u.Query()
		c.Storage = StorageConfig{
			Type:         "s3",
			Bucket:       u.Host,
			Region:       q.Get("region"),
			Endpoint:     q.Get("endpoint"),
			UsePathStyle: q.Get("path_style") == "true",
		}
	default:
		return fmt.Errorf("unsupported STORAGE_URL scheme: %s", u.Scheme)
	}
	return nil
}

func applyPolicyEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "MAX_FILE_SIZE_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_FILE_SIZE_BYTES: %s", v)
		}
		c.UploadPolicy.MaxFileSizeBytes = n
	}

	if v, ok := lookupEnv(prefix, "SESSION_QUOTA_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid SESSION_QUOTA_BYTES: %s", v)
		}
		c.SessionQuotaBytes = n
	}

	if v, ok := lookupEnv(prefix, "RUN_MIGRATIONS"); ok {
		c.RunMigrations = v == "true" || v == "1"
	}

	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	if prefix != "" {
		if v, ok := os.LookupEnv(prefix + key); ok {
			return v, true
		}
	}
	return os.LookupEnv(key)
}
