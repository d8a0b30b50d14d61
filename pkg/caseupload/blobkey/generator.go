// Package blobkey generates object-store keys for staged uploads.
package blobkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key generation strategies.
// Keys must be collision-resistant and must not be derivable from the
// uploaded file name: two users (or one user retrying) uploading a
// same-named file must never collide in the object store.
type Generator interface {
	// GenerateKey creates a fresh object key for a file staged into the
	// given case.
	GenerateKey(caseID uuid.UUID, fileName string) string
}

// CaseScopedGenerator prefixes every key with the case it belongs to and
// appends a fresh random suffix. The file name never participates in the
// key.
//
// Key shape: cases/{caseID}/{random}
type CaseScopedGenerator struct{}

func NewCaseScopedGenerator() *CaseScopedGenerator {
	return &CaseScopedGenerator{}
}

func (g *CaseScopedGenerator) GenerateKey(caseID uuid.UUID, _ string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("cases/%s/%s", caseID, suffix)
}

// ShardedGenerator adds Git-style sharding under the case prefix for
// backends that degrade with many keys in one directory.
//
// Key shape: cases/{caseID}/{shard}/{random}
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(caseID uuid.UUID, _ string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")

	shardLen := g.ShardLength
	if shardLen <= 0 || shardLen > len(suffix) {
		shardLen = 2
	}

	return fmt.Sprintf("cases/%s/%s/%s", caseID, suffix[:shardLen], suffix[shardLen:])
}
