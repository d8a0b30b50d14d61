package config

import (
	"errors"

	"github.com/casevault/casevault/pkg/caseupload/validate"
)

// WithPort sets the HTTP port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithDatabase sets the database type and connection URL
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return errors.New("database type must be 'memory' or 'postgres'")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithMemoryStorage selects the in-memory blob store
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}
}

// WithFilesystemStorage selects filesystem blob storage rooted at baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return errors.New("base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: "fs", BaseDir: baseDir}
		return nil
	}
}

// WithS3Storage selects S3 blob storage
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return errors.New("bucket cannot be empty")
		}
		c.Storage = StorageConfig{Type: "s3", Bucket: bucket, Region: region}
		return nil
	}
}

// WithS3Credentials sets static S3 credentials and an optional custom endpoint
func WithS3Credentials(accessKeyID, secretAccessKey, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return errors.New("s3 credentials require s3 storage")
		}
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		c.Storage.Endpoint = endpoint
		c.Storage.UsePathStyle = usePathStyle
		return nil
	}
}

// WithUploadPolicy replaces the default validation policy
func WithUploadPolicy(policy validate.Policy) Option {
	return func(c *ServerConfig) error {
		if policy.MaxFileSizeBytes <= 0 {
			return errors.New("max file size must be positive")
		}
		c.UploadPolicy = policy
		return nil
	}
}

// WithSessionQuota sets the total staged-bytes limit per session and case.
// Zero disables the quota check.
func WithSessionQuota(quotaBytes int64) Option {
	return func(c *ServerConfig) error {
		if quotaBytes < 0 {
			return errors.New("session quota cannot be negative")
		}
		c.SessionQuotaBytes = quotaBytes
		return nil
	}
}

// WithShardedBlobKeys enables sharded blob key generation
func WithShardedBlobKeys() Option {
	return func(c *ServerConfig) error {
		c.ShardedBlobKeys = true
		return nil
	}
}

// WithMigrations enables applying schema migrations on startup
func WithMigrations(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.RunMigrations = enabled
		return nil
	}
}
