package caseupload

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrDraftNotFound indicates a draft file was not found in the caller's scope
	ErrDraftNotFound = errors.New("draft file not found")

	// ErrStoreUnavailable indicates the object store could not be reached
	ErrStoreUnavailable = errors.New("object store unavailable")

	// ErrWriteFailed indicates the object store rejected a blob write
	ErrWriteFailed = errors.New("object store write failed")

	// ErrTransactionFailed indicates a commit transaction could not complete.
	// No partial state is left behind; the commit is safe to retry.
	ErrTransactionFailed = errors.New("commit transaction failed")

	// ErrCommitConflict indicates a concurrent commit consumed the same
	// drafts first. The losing commit performs no mutation.
	ErrCommitConflict = errors.New("drafts were committed concurrently")
)

// StorageError represents an error from the object store
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DraftError represents an error related to a single draft file
type DraftError struct {
	DraftID uuid.UUID
	Op      string
	Err     error
}

func (e *DraftError) Error() string {
	return fmt.Sprintf("draft operation %s failed for draft %s: %v", e.Op, e.DraftID, e.Err)
}

func (e *DraftError) Unwrap() error {
	return e.Err
}

// CommitError represents a failed promotion of a staging scope
type CommitError struct {
	Scope StagingScope
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed for session %s case %s folder %s: %v",
		e.Scope.SessionKey, e.Scope.CaseID, e.Scope.FolderID, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
