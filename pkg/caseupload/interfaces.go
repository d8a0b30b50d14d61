package caseupload

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for object storage backends. The store
// holds opaque bytes under caller-chosen keys and is never queried for
// metadata; metadata is duplicated into the relational records instead.
type BlobStore interface {
	// Upload writes a blob under the given key
	Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error

	// Download reads a blob back
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// DeleteIfExists removes a blob if present. A missing key is not an
	// error; the returned bool reports whether anything was deleted.
	DeleteIfExists(ctx context.Context, objectKey string) (bool, error)
}

// Repository defines the interface for draft and case-file persistence.
// Draft records are owned exclusively by this repository; case files are
// written only through PromoteDrafts.
type Repository interface {
	// Draft operations
	InsertDraft(ctx context.Context, draft *DraftFile) error
	GetDraft(ctx context.Context, id uuid.UUID, sessionKey string) (*DraftFile, error)
	ListDrafts(ctx context.Context, scope StagingScope) ([]*DraftFile, error)
	DeleteDraft(ctx context.Context, id uuid.UUID, sessionKey string) error
	DeleteAllDrafts(ctx context.Context, scope StagingScope) error

	// Quota/duplicate queries, scoped to (sessionKey, caseID)
	SumDraftSizes(ctx context.Context, sessionKey string, caseID uuid.UUID) (int64, error)
	HasDraftNamed(ctx context.Context, sessionKey string, caseID uuid.UUID, fileName string) (bool, error)

	// PromoteDrafts atomically converts every draft in the scope into a
	// case file and deletes the consumed drafts. Both halves succeed or
	// both roll back; a concurrent commit for the same scope loses with
	// ErrCommitConflict instead of double-inserting.
	PromoteDrafts(ctx context.Context, scope StagingScope) (int, error)

	// Case-file reads
	ListCaseFiles(ctx context.Context, caseID, folderID uuid.UUID) ([]*CaseFile, error)
}
