package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/casevault/casevault/pkg/caseupload"
)

// Repository implements caseupload.Repository using in-memory storage.
// A single lock around PromoteDrafts makes the commit path serializable,
// matching what the postgres repository gets from its transaction.
type Repository struct {
	mu              sync.RWMutex
	drafts          map[uuid.UUID]*caseupload.DraftFile
	caseFiles       map[uuid.UUID]*caseupload.CaseFile
	caseFilesByBlob map[string]uuid.UUID // blob_key -> case_file id, mirrors the unique index
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		drafts:          make(map[uuid.UUID]*caseupload.DraftFile),
		caseFiles:       make(map[uuid.UUID]*caseupload.CaseFile),
		caseFilesByBlob: make(map[string]uuid.UUID),
	}
}

// Draft operations

func (r *Repository) InsertDraft(ctx context.Context, draft *caseupload.DraftFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	draftCopy := *draft
	r.drafts[draft.ID] = &draftCopy

	return nil
}

func (r *Repository) GetDraft(ctx context.Context, id uuid.UUID, sessionKey string) (*caseupload.DraftFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	draft, exists := r.drafts[id]
	if !exists || draft.SessionKey != sessionKey {
		return nil, caseupload.ErrDraftNotFound
	}

	draftCopy := *draft
	return &draftCopy, nil
}

func (r *Repository) ListDrafts(ctx context.Context, scope caseupload.StagingScope) ([]*caseupload.DraftFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listDraftsLocked(scope), nil
}

func (r *Repository) listDraftsLocked(scope caseupload.StagingScope) []*caseupload.DraftFile {
	var drafts []*caseupload.DraftFile
	for _, draft := range r.drafts {
		if draft.SessionKey == scope.SessionKey &&
			draft.CaseID == scope.CaseID &&
			draft.FolderID == scope.FolderID {
			draftCopy := *draft
			drafts = append(drafts, &draftCopy)
		}
	}

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})
	return drafts
}

func (r *Repository) DeleteDraft(ctx context.Context, id uuid.UUID, sessionKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draft, exists := r.drafts[id]
	if !exists || draft.SessionKey != sessionKey {
		return caseupload.ErrDraftNotFound
	}

	delete(r.drafts, id)
	return nil
}

func (r *Repository) DeleteAllDrafts(ctx context.Context, scope caseupload.StagingScope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, draft := range r.drafts {
		if draft.SessionKey == scope.SessionKey &&
			draft.CaseID == scope.CaseID &&
			draft.FolderID == scope.FolderID {
			delete(r.drafts, id)
		}
	}
	return nil
}

// Quota/duplicate queries

func (r *Repository) SumDraftSizes(ctx context.Context, sessionKey string, caseID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, draft := range r.drafts {
		if draft.SessionKey == sessionKey && draft.CaseID == caseID {
			total += draft.SizeBytes
		}
	}
	return total, nil
}

func (r *Repository) HasDraftNamed(ctx context.Context, sessionKey string, caseID uuid.UUID, fileName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, draft := range r.drafts {
		if draft.SessionKey == sessionKey && draft.CaseID == caseID && draft.FileName == fileName {
			return true, nil
		}
	}
	return false, nil
}

// Commit

func (r *Repository) PromoteDrafts(ctx context.Context, scope caseupload.StagingScope) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drafts := r.listDraftsLocked(scope)
	if len(drafts) == 0 {
		return 0, caseupload.ErrCommitConflict
	}

	// Validate everything before mutating anything, so a failure leaves
	// the drafts fully intact.
	promoted := make([]*caseupload.CaseFile, 0, len(drafts))
	for _, draft := range drafts {
		if _, taken := r.caseFilesByBlob[draft.BlobKey]; taken {
			return 0, fmt.Errorf("blob key %s already belongs to a case file", draft.BlobKey)
		}
		promoted = append(promoted, &caseupload.CaseFile{
			ID:        uuid.New(),
			CaseID:    draft.CaseID,
			FolderID:  draft.FolderID,
			FileName:  draft.FileName,
			BlobKey:   draft.BlobKey,
			SizeBytes: draft.SizeBytes,
			MimeType:  draft.MimeType,
			CreatedAt: draft.CreatedAt,
		})
	}

	for _, cf := range promoted {
		r.caseFiles[cf.ID] = cf
		r.caseFilesByBlob[cf.BlobKey] = cf.ID
	}
	for _, draft := range drafts {
		delete(r.drafts, draft.ID)
	}

	return len(promoted), nil
}

// Case-file reads

func (r *Repository) ListCaseFiles(ctx context.Context, caseID, folderID uuid.UUID) ([]*caseupload.CaseFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var files []*caseupload.CaseFile
	for _, cf := range r.caseFiles {
		if cf.CaseID == caseID && cf.FolderID == folderID {
			cfCopy := *cf
			files = append(files, &cfCopy)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// PutCaseFile inserts a case file directly, bypassing the commit path.
// It exists for tests that need to occupy a blob key the way the
// database's unique index would.
func (r *Repository) PutCaseFile(cf *caseupload.CaseFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfCopy := *cf
	r.caseFiles[cf.ID] = &cfCopy
	r.caseFilesByBlob[cf.BlobKey] = cf.ID
}
