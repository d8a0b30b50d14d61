package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casevault/casevault/pkg/caseupload"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements caseupload.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository over an existing connection or
// transaction. PromoteDrafts needs its own transaction and is only
// available on repositories created with NewWithPool.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Draft operations

func (r *Repository) InsertDraft(ctx context.Context, draft *caseupload.DraftFile) error {
	query := `
		INSERT INTO staged_file (
			id, session_key, case_id, folder_id, file_name,
			blob_key, size_bytes, mime_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		draft.ID, draft.SessionKey, draft.CaseID, draft.FolderID,
		draft.FileName, draft.BlobKey, draft.SizeBytes, draft.MimeType, draft.CreatedAt)

	if err != nil {
		return handlePostgresError("insert draft", err)
	}
	return nil
}

func (r *Repository) GetDraft(ctx context.Context, id uuid.UUID, sessionKey string) (*caseupload.DraftFile, error) {
	query := `
		SELECT id, session_key, case_id, folder_id, file_name,
		       blob_key, size_bytes, mime_type, created_at
		FROM staged_file
		WHERE id = $1 AND session_key = $2`

	var draft caseupload.DraftFile
	err := r.db.QueryRow(ctx, query, id, sessionKey).Scan(
		&draft.ID, &draft.SessionKey, &draft.CaseID, &draft.FolderID,
		&draft.FileName, &draft.BlobKey, &draft.SizeBytes, &draft.MimeType, &draft.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caseupload.ErrDraftNotFound
		}
		return nil, handlePostgresError("get draft", err)
	}
	return &draft, nil
}

func (r *Repository) ListDrafts(ctx context.Context, scope caseupload.StagingScope) ([]*caseupload.DraftFile, error) {
	return listDrafts(ctx, r.db, scope)
}

func listDrafts(ctx context.Context, db DBTX, scope caseupload.StagingScope) ([]*caseupload.DraftFile, error) {
	query := `
		SELECT id, session_key, case_id, folder_id, file_name,
		       blob_key, size_bytes, mime_type, created_at
		FROM staged_file
		WHERE session_key = $1 AND case_id = $2 AND folder_id = $3
		ORDER BY created_at`

	rows, err := db.Query(ctx, query, scope.SessionKey, scope.CaseID, scope.FolderID)
	if err != nil {
		return nil, handlePostgresError("list drafts", err)
	}
	defer rows.Close()

	var drafts []*caseupload.DraftFile
	for rows.Next() {
		var draft caseupload.DraftFile
		if err := rows.Scan(
			&draft.ID, &draft.SessionKey, &draft.CaseID, &draft.FolderID,
			&draft.FileName, &draft.BlobKey, &draft.SizeBytes, &draft.MimeType, &draft.CreatedAt); err != nil {
			return nil, handlePostgresError("scan draft", err)
		}
		drafts = append(drafts, &draft)
	}
	return drafts, rows.Err()
}

func (r *Repository) DeleteDraft(ctx context.Context, id uuid.UUID, sessionKey string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM staged_file WHERE id = $1 AND session_key = $2`,
		id, sessionKey)
	if err != nil {
		return handlePostgresError("delete draft", err)
	}
	if tag.RowsAffected() == 0 {
		return caseupload.ErrDraftNotFound
	}
	return nil
}

func (r *Repository) DeleteAllDrafts(ctx context.Context, scope caseupload.StagingScope) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM staged_file WHERE session_key = $1 AND case_id = $2 AND folder_id = $3`,
		scope.SessionKey, scope.CaseID, scope.FolderID)
	if err != nil {
		return handlePostgresError("delete all drafts", err)
	}
	return nil
}

// Quota/duplicate queries

func (r *Repository) SumDraftSizes(ctx context.Context, sessionKey string, caseID uuid.UUID) (int64, error) {
	// COALESCE turns the empty-scope NULL aggregate into zero.
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM staged_file WHERE session_key = $1 AND case_id = $2`,
		sessionKey, caseID).Scan(&total)
	if err != nil {
		return 0, handlePostgresError("sum draft sizes", err)
	}
	return total, nil
}

func (r *Repository) HasDraftNamed(ctx context.Context, sessionKey string, caseID uuid.UUID, fileName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM staged_file
			WHERE session_key = $1 AND case_id = $2 AND file_name = $3
		)`,
		sessionKey, caseID, fileName).Scan(&exists)
	if err != nil {
		return false, handlePostgresError("has draft named", err)
	}
	return exists, nil
}

// Commit

// PromoteDrafts converts every draft in the scope into a case file and
// deletes the drafts, all inside one transaction. The delete is
// conditional on the draft ids read at the start of the transaction, so a
// concurrent commit that consumed the same drafts is detected as a row
// count mismatch and rejected instead of double-inserting.
func (r *Repository) PromoteDrafts(ctx context.Context, scope caseupload.StagingScope) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("%w: promote requires a connection pool", caseupload.ErrTransactionFailed)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", caseupload.ErrTransactionFailed, err)
	}
	defer tx.Rollback(ctx)

	count, err := promoteDraftsTx(ctx, tx, scope)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", caseupload.ErrTransactionFailed, err)
	}
	return count, nil
}

func promoteDraftsTx(ctx context.Context, tx pgx.Tx, scope caseupload.StagingScope) (int, error) {
	drafts, err := listDrafts(ctx, tx, scope)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", caseupload.ErrTransactionFailed, err)
	}
	if len(drafts) == 0 {
		return 0, caseupload.ErrCommitConflict
	}

	insert := `
		INSERT INTO case_file (id, case_id, folder_id, file_name, blob_key, size_bytes, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`

	ids := make([]uuid.UUID, 0, len(drafts))
	for _, draft := range drafts {
		_, err := tx.Exec(ctx, insert,
			uuid.New(), draft.CaseID, draft.FolderID, draft.FileName,
			draft.BlobKey, draft.SizeBytes, draft.MimeType)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", caseupload.ErrTransactionFailed, handlePostgresError("insert case file", err))
		}
		ids = append(ids, draft.ID)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM staged_file
		 WHERE session_key = $1 AND case_id = $2 AND folder_id = $3 AND id = ANY($4)`,
		scope.SessionKey, scope.CaseID, scope.FolderID, ids)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", caseupload.ErrTransactionFailed, err)
	}
	if int(tag.RowsAffected()) != len(drafts) {
		return 0, caseupload.ErrCommitConflict
	}

	return len(drafts), nil
}

// Case-file reads

func (r *Repository) ListCaseFiles(ctx context.Context, caseID, folderID uuid.UUID) ([]*caseupload.CaseFile, error) {
	query := `
		SELECT id, case_id, folder_id, file_name, blob_key, size_bytes, mime_type, created_at
		FROM case_file
		WHERE case_id = $1 AND folder_id = $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, caseID, folderID)
	if err != nil {
		return nil, handlePostgresError("list case files", err)
	}
	defer rows.Close()

	var files []*caseupload.CaseFile
	for rows.Next() {
		var cf caseupload.CaseFile
		if err := rows.Scan(
			&cf.ID, &cf.CaseID, &cf.FolderID, &cf.FileName,
			&cf.BlobKey, &cf.SizeBytes, &cf.MimeType, &cf.CreatedAt); err != nil {
			return nil, handlePostgresError("scan case file", err)
		}
		files = append(files, &cf)
	}
	return files, rows.Err()
}
