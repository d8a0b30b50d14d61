package caseupload_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/casevault/pkg/caseupload"
	"github.com/casevault/casevault/pkg/caseupload/repo/memory"
	memorystorage "github.com/casevault/casevault/pkg/caseupload/storage/memory"
	"github.com/casevault/casevault/pkg/caseupload/validate"
)

func testScope() caseupload.StagingScope {
	return caseupload.StagingScope{
		SessionKey: "session-1",
		CaseID:     uuid.New(),
		FolderID:   uuid.New(),
	}
}

func testPolicy() validate.Policy {
	return validate.Policy{
		AllowedExtensions: []string{"pdf", "png"},
		AllowedMimeTypes:  []string{"application/pdf", "image/png"},
		MaxFileSizeBytes:  1 << 20,
	}
}

func pngFile(name string) caseupload.UploadFile {
	content := append([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 24)...)
	return caseupload.UploadFile{
		Name:     name,
		MimeType: "image/png",
		Size:     int64(len(content)),
		Content:  content,
	}
}

type testEnv struct {
	svc   caseupload.Service
	repo  *memory.Repository
	store *memorystorage.Backend
}

func setupTestService(t *testing.T) *testEnv {
	repo := memory.New()
	store := memorystorage.New()

	svc, err := caseupload.New(
		caseupload.WithRepository(repo),
		caseupload.WithBlobStore(store),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return &testEnv{svc: svc, repo: repo, store: store}
}

func stage(t *testing.T, env *testEnv, scope caseupload.StagingScope, files ...caseupload.UploadFile) *caseupload.StageResult {
	t.Helper()

	result, err := env.svc.ValidateAndStage(context.Background(), caseupload.ValidateAndStageRequest{
		Scope:      scope,
		Files:      files,
		Policy:     testPolicy(),
		QuotaBytes: 10 << 20,
	})
	require.NoError(t, err)
	return result
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []caseupload.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []caseupload.Option{},
			expectError: true,
		},
		{
			name: "repository alone should fail",
			options: []caseupload.Option{
				caseupload.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "repository and blob store should succeed",
			options: []caseupload.Option{
				caseupload.WithRepository(memory.New()),
				caseupload.WithBlobStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := caseupload.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestValidateAndStageCreatesDraft(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()

	result := stage(t, env, scope, pngFile("cover.png"))
	assert.Empty(t, result.Violations)
	require.Len(t, result.Staged, 1)

	draft := result.Staged[0]
	assert.Equal(t, "cover.png", draft.FileName)
	assert.Equal(t, scope.SessionKey, draft.SessionKey)
	assert.Equal(t, scope.CaseID, draft.CaseID)
	assert.NotContains(t, draft.BlobKey, "cover")

	// Blob is durable before the draft exists.
	body, err := env.store.Download(context.Background(), draft.BlobKey)
	require.NoError(t, err)
	body.Close()

	drafts, err := env.svc.ListDrafts(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestValidateAndStageRejectsWholeBatch(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()

	bad := pngFile("fake.png")
	bad.Content = append([]byte("MZ"), make([]byte, 62)...)

	result := stage(t, env, scope, pngFile("good.png"), bad)
	require.NotEmpty(t, result.Violations)
	assert.Empty(t, result.Staged)

	drafts, err := env.svc.ListDrafts(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, drafts, "a failing batch must stage nothing")
}

func TestDuplicateNameRejected(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()

	first := stage(t, env, scope, pngFile("report.png"))
	require.Len(t, first.Staged, 1)

	second := stage(t, env, scope, pngFile("report.png"))
	require.Len(t, second.Violations, 1)
	assert.Contains(t, second.Violations[0].Message, "already staged")
	assert.Empty(t, second.Staged)

	// The first upload is untouched.
	drafts, err := env.svc.ListDrafts(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestQuotaEnforcement(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()

	result, err := env.svc.ValidateAndStage(context.Background(), caseupload.ValidateAndStageRequest{
		Scope:      scope,
		Files:      []caseupload.UploadFile{pngFile("one.png")},
		Policy:     testPolicy(),
		QuotaBytes: 16,
	})
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Contains(t, result.Violations[0].Message, "exceed")

	// Monotonic: adding another file to a failing batch still fails.
	result, err = env.svc.ValidateAndStage(context.Background(), caseupload.ValidateAndStageRequest{
		Scope:      scope,
		Files:      []caseupload.UploadFile{pngFile("one.png"), pngFile("two.png")},
		Policy:     testPolicy(),
		QuotaBytes: 16,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Violations)
	assert.Contains(t, result.Violations[len(result.Violations)-1].Message, "exceed")
}

func TestCommitRoundTrip(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("evidence.png"))
	require.Len(t, result.Staged, 1)
	draft := result.Staged[0]

	count, err := env.svc.Commit(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Drafts are consumed.
	drafts, err := env.svc.ListDrafts(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// The case file carries the draft's identity verbatim.
	files, err := env.svc.ListCaseFiles(ctx, scope.CaseID, scope.FolderID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, draft.BlobKey, files[0].BlobKey)
	assert.Equal(t, draft.FileName, files[0].FileName)
	assert.Equal(t, draft.SizeBytes, files[0].SizeBytes)
	assert.Equal(t, draft.MimeType, files[0].MimeType)
}

func TestCommitEmptyScopeIsIdempotentNoop(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		count, err := env.svc.Commit(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	}

	files, err := env.svc.ListCaseFiles(ctx, scope.CaseID, scope.FolderID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCommitAllOrNothing(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("a.png"), pngFile("b.png"))
	require.Len(t, result.Staged, 2)

	// Occupy one draft's blob key the way the unique index would, so
	// the permanent insert fails partway through.
	env.repo.PutCaseFile(&caseupload.CaseFile{
		ID:       uuid.New(),
		CaseID:   scope.CaseID,
		FolderID: scope.FolderID,
		BlobKey:  result.Staged[1].BlobKey,
	})

	_, err := env.svc.Commit(ctx, scope)
	require.Error(t, err)

	var commitErr *caseupload.CommitError
	assert.True(t, errors.As(err, &commitErr))

	// Drafts are fully intact and no new case file appeared.
	drafts, err := env.svc.ListDrafts(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	files, err := env.svc.ListCaseFiles(ctx, scope.CaseID, scope.FolderID)
	require.NoError(t, err)
	assert.Len(t, files, 1, "only the pre-seeded record may exist")
}

func TestDeleteDraft(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("discard.png"))
	draft := result.Staged[0]

	require.NoError(t, env.svc.DeleteDraft(ctx, scope.SessionKey, draft.ID))

	drafts, err := env.svc.ListDrafts(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	_, err = env.store.Download(ctx, draft.BlobKey)
	assert.Error(t, err, "blob should be gone")
}

func TestDeleteDraftMissingIsNoop(t *testing.T) {
	env := setupTestService(t)

	err := env.svc.DeleteDraft(context.Background(), "session-1", uuid.New())
	assert.NoError(t, err)
}

func TestDeleteDraftWrongSessionIsNoop(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("mine.png"))
	draft := result.Staged[0]

	// Another session cannot delete the draft; for it the draft simply
	// does not exist.
	require.NoError(t, env.svc.DeleteDraft(ctx, "other-session", draft.ID))

	drafts, err := env.svc.ListDrafts(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestDeleteDraftRacingDeleteIsNoop(t *testing.T) {
	repo := &vanishingRepo{Repository: memory.New()}
	store := memorystorage.New()

	svc, err := caseupload.New(
		caseupload.WithRepository(repo),
		caseupload.WithBlobStore(store),
	)
	require.NoError(t, err)

	env := &testEnv{svc: svc, store: store}
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("contested.png"))
	draft := result.Staged[0]

	// The draft disappears between the lookup and the delete, as if
	// another request for the same session removed it first.
	assert.NoError(t, svc.DeleteDraft(ctx, scope.SessionKey, draft.ID))
}

func TestDeleteDraftSurvivesBlobDeleteFailure(t *testing.T) {
	repo := memory.New()
	store := &flakyStore{Backend: memorystorage.New(), failDelete: true}

	svc, err := caseupload.New(
		caseupload.WithRepository(repo),
		caseupload.WithBlobStore(store),
	)
	require.NoError(t, err)

	env := &testEnv{svc: svc, repo: repo}
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("leaky.png"))
	draft := result.Staged[0]

	// The record delete is authoritative; the failed blob delete is
	// logged and swallowed.
	require.NoError(t, svc.DeleteDraft(ctx, scope.SessionKey, draft.ID))

	drafts, err := svc.ListDrafts(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestStageFailsWhenStoreUnavailable(t *testing.T) {
	repo := memory.New()
	store := &flakyStore{Backend: memorystorage.New(), failUpload: true}

	svc, err := caseupload.New(
		caseupload.WithRepository(repo),
		caseupload.WithBlobStore(store),
	)
	require.NoError(t, err)

	_, err = svc.ValidateAndStage(context.Background(), caseupload.ValidateAndStageRequest{
		Scope:      testScope(),
		Files:      []caseupload.UploadFile{pngFile("lost.png")},
		Policy:     testPolicy(),
		QuotaBytes: 10 << 20,
	})
	require.Error(t, err)

	var storageErr *caseupload.StorageError
	assert.True(t, errors.As(err, &storageErr))
	assert.ErrorIs(t, err, caseupload.ErrStoreUnavailable)
}

func TestDeleteAllDrafts(t *testing.T) {
	env := setupTestService(t)
	scope := testScope()
	ctx := context.Background()

	result := stage(t, env, scope, pngFile("a.png"), pngFile("b.png"))
	require.Len(t, result.Staged, 2)

	require.NoError(t, env.svc.DeleteAllDrafts(ctx, scope))

	drafts, err := env.svc.ListDrafts(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	for _, draft := range result.Staged {
		_, err := env.store.Download(ctx, draft.BlobKey)
		assert.Error(t, err)
	}
}

// vanishingRepo makes every draft disappear right after a successful
// lookup, simulating a concurrent delete winning the race.
type vanishingRepo struct {
	*memory.Repository
}

func (r *vanishingRepo) DeleteDraft(ctx context.Context, id uuid.UUID, sessionKey string) error {
	if err := r.Repository.DeleteDraft(ctx, id, sessionKey); err != nil {
		return err
	}
	return caseupload.ErrDraftNotFound
}

// flakyStore wraps the memory backend with injectable failures.
type flakyStore struct {
	*memorystorage.Backend
	failUpload bool
	failDelete bool
}

func (s *flakyStore) Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error {
	if s.failUpload {
		return fmt.Errorf("%w: simulated outage", caseupload.ErrStoreUnavailable)
	}
	return s.Backend.Upload(ctx, objectKey, mimeType, reader)
}

func (s *flakyStore) DeleteIfExists(ctx context.Context, objectKey string) (bool, error) {
	if s.failDelete {
		return false, errors.New("store unavailable")
	}
	return s.Backend.DeleteIfExists(ctx, objectKey)
}
