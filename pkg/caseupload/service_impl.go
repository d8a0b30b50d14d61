package caseupload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/casevault/casevault/pkg/caseupload/blobkey"
	"github.com/casevault/casevault/pkg/caseupload/validate"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	keys       blobkey.Generator
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the object storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithBlobKeyGenerator sets the blob key generation strategy
func WithBlobKeyGenerator(g blobkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithLogger sets the logger used for best-effort failure reporting
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.keys == nil {
		s.keys = blobkey.NewCaseScopedGenerator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) ValidateAndStage(ctx context.Context, req ValidateAndStageRequest) (*StageResult, error) {
	files := make([]UploadFile, len(req.Files))
	for i, f := range req.Files {
		f.Name = SanitizeFileName(f.Name)
		files[i] = f
	}

	violations, err := s.checkBatch(ctx, req.Scope, files, req.Policy, req.QuotaBytes)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return &StageResult{Violations: violations}, nil
	}

	// Blob first, record second: a draft record must never point at a
	// blob that was not durably written.
	staged := make([]*DraftFile, 0, len(files))
	for _, f := range files {
		draft, err := s.stageOne(ctx, req.Scope, f)
		if err != nil {
			return nil, err
		}
		staged = append(staged, draft)
	}

	return &StageResult{Staged: staged}, nil
}

// checkBatch runs the content validator for every file plus the
// duplicate-name and quota queries, all concurrently. The per-file
// validations share no state and the two repository queries are
// read-only, so everything is merged only after all of them finish and
// the caller sees every problem in one round trip.
func (s *service) checkBatch(ctx context.Context, scope StagingScope, files []UploadFile, policy validate.Policy, quotaBytes int64) ([]validate.Violation, error) {
	perFile := make([][]validate.Violation, len(files))
	var duplicates []validate.Violation
	var quota []validate.Violation

	g, ctx := errgroup.WithContext(ctx)

	for i, f := range files {
		g.Go(func() error {
			perFile[i] = validate.Validate(validate.File{
				Name:         f.Name,
				DeclaredMime: f.MimeType,
				DeclaredSize: f.Size,
				Content:      f.Content,
			}, policy)
			return nil
		})
	}

	g.Go(func() error {
		var err error
		duplicates, err = s.checkDuplicateNames(ctx, scope, files)
		return err
	})

	g.Go(func() error {
		var err error
		quota, err = s.checkQuota(ctx, scope, files, quotaBytes)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []validate.Violation
	for _, vs := range perFile {
		merged = append(merged, vs...)
	}
	merged = append(merged, duplicates...)
	merged = append(merged, quota...)
	return merged, nil
}

func (s *service) checkDuplicateNames(ctx context.Context, scope StagingScope, files []UploadFile) ([]validate.Violation, error) {
	var vs []validate.Violation
	for _, f := range files {
		exists, err := s.repository.HasDraftNamed(ctx, scope.SessionKey, scope.CaseID, f.Name)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if exists {
			vs = append(vs, validate.Violation{
				Message: fmt.Sprintf("a file named %q is already staged", f.Name),
				Field:   "fileName",
			})
		}
	}
	return vs, nil
}

func (s *service) checkQuota(ctx context.Context, scope StagingScope, files []UploadFile, quotaBytes int64) ([]validate.Violation, error) {
	if quotaBytes <= 0 {
		return nil, nil
	}

	staged, err := s.repository.SumDraftSizes(ctx, scope.SessionKey, scope.CaseID)
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}

	total := staged
	for _, f := range files {
		total += f.Size
	}

	if total > quotaBytes {
		return []validate.Violation{{
			Message: fmt.Sprintf("uploading these files would exceed the %d byte limit for this case", quotaBytes),
			Field:   "sizeBytes",
		}}, nil
	}
	return nil, nil
}

func (s *service) stageOne(ctx context.Context, scope StagingScope, f UploadFile) (*DraftFile, error) {
	key := s.keys.GenerateKey(scope.CaseID, f.Name)

	if err := s.blobStore.Upload(ctx, key, f.MimeType, bytes.NewReader(f.Content)); err != nil {
		return nil, &StorageError{Key: key, Op: "upload", Err: err}
	}

	draft := &DraftFile{
		ID:         uuid.New(),
		SessionKey: scope.SessionKey,
		CaseID:     scope.CaseID,
		FolderID:   scope.FolderID,
		FileName:   f.Name,
		BlobKey:    key,
		SizeBytes:  f.Size,
		MimeType:   f.MimeType,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repository.InsertDraft(ctx, draft); err != nil {
		return nil, &DraftError{DraftID: draft.ID, Op: "insert", Err: err}
	}

	return draft, nil
}

func (s *service) ListDrafts(ctx context.Context, scope StagingScope) ([]*DraftFile, error) {
	return s.repository.ListDrafts(ctx, scope)
}

func (s *service) Commit(ctx context.Context, scope StagingScope) (int, error) {
	drafts, err := s.repository.ListDrafts(ctx, scope)
	if err != nil {
		return 0, &CommitError{Scope: scope, Err: err}
	}
	if len(drafts) == 0 {
		return 0, nil
	}

	count, err := s.repository.PromoteDrafts(ctx, scope)
	if err != nil {
		return 0, &CommitError{Scope: scope, Err: err}
	}
	return count, nil
}

func (s *service) DeleteDraft(ctx context.Context, sessionKey string, draftID uuid.UUID) error {
	draft, err := s.repository.GetDraft(ctx, draftID, sessionKey)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			s.logger.Info("draft already gone, nothing to delete",
				"draft_id", draftID, "session_key", sessionKey)
			return nil
		}
		return &DraftError{DraftID: draftID, Op: "lookup", Err: err}
	}

	// The record delete must be durable before the blob delete is even
	// attempted. An orphaned blob is a recoverable leak; a record
	// pointing at a missing blob is a correctness bug.
	if err := s.repository.DeleteDraft(ctx, draftID, sessionKey); err != nil {
		// A concurrent delete between lookup and here is still a success.
		if errors.Is(err, ErrDraftNotFound) {
			s.logger.Info("draft already gone, nothing to delete",
				"draft_id", draftID, "session_key", sessionKey)
			return nil
		}
		return &DraftError{DraftID: draftID, Op: "delete", Err: err}
	}

	s.deleteBlobBestEffort(ctx, draft.BlobKey)
	return nil
}

func (s *service) DeleteAllDrafts(ctx context.Context, scope StagingScope) error {
	drafts, err := s.repository.ListDrafts(ctx, scope)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		return nil
	}

	if err := s.repository.DeleteAllDrafts(ctx, scope); err != nil {
		return err
	}

	for _, draft := range drafts {
		s.deleteBlobBestEffort(ctx, draft.BlobKey)
	}
	return nil
}

// deleteBlobBestEffort removes a blob whose record is already gone.
// Failures are logged and swallowed, never propagated.
func (s *service) deleteBlobBestEffort(ctx context.Context, blobKey string) {
	if _, err := s.blobStore.DeleteIfExists(ctx, blobKey); err != nil {
		s.logger.Warn("failed to delete blob for removed draft, leaving orphan",
			"blob_key", blobKey, "error", err)
	}
}

func (s *service) ListCaseFiles(ctx context.Context, caseID, folderID uuid.UUID) ([]*CaseFile, error) {
	return s.repository.ListCaseFiles(ctx, caseID, folderID)
}
