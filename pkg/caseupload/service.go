package caseupload

import (
	"context"

	"github.com/google/uuid"
)

// Service is the upload core exposed to the web layer. All operations
// are request-scoped and stateless between requests; session identity is
// an opaque key supplied by the caller on every call.
type Service interface {
	// ValidateAndStage validates an upload batch against the request's
	// policy and the scope's quota. If any file in the batch fails,
	// every violation across the whole batch is returned and nothing is
	// staged; otherwise each file's bytes are written to the object
	// store and a draft record is created per file.
	ValidateAndStage(ctx context.Context, req ValidateAndStageRequest) (*StageResult, error)

	// ListDrafts returns the pending uploads for a scope.
	ListDrafts(ctx context.Context, scope StagingScope) ([]*DraftFile, error)

	// Commit promotes every draft in the scope into a case file and
	// clears the drafts, atomically. A scope with no drafts commits to
	// zero without touching the write path.
	Commit(ctx context.Context, scope StagingScope) (int, error)

	// DeleteDraft removes one draft owned by the session. A missing
	// draft is a logged no-op. The record delete is authoritative; the
	// blob delete afterwards is best-effort.
	DeleteDraft(ctx context.Context, sessionKey string, draftID uuid.UUID) error

	// DeleteAllDrafts abandons every draft in the scope, with the same
	// record-first, blob-best-effort contract as DeleteDraft.
	DeleteAllDrafts(ctx context.Context, scope StagingScope) error

	// ListCaseFiles returns the committed files for a folder.
	ListCaseFiles(ctx context.Context, caseID, folderID uuid.UUID) ([]*CaseFile, error)
}
