package caseupload

import (
	"time"

	"github.com/google/uuid"
)

// StagingScope identifies one pending-upload workspace: the browser
// session doing the uploading plus the case folder the files are destined
// for. Every staging and commit operation is scoped by it.
type StagingScope struct {
	SessionKey string    `json:"session_key"`
	CaseID     uuid.UUID `json:"case_id"`
	FolderID   uuid.UUID `json:"folder_id"`
}

// DraftFile is an uploaded-but-unconfirmed file. Its blob is already
// durable in the object store; the record is deleted either by an
// explicit user delete or by being consumed during commit.
type DraftFile struct {
	ID         uuid.UUID `json:"id"`
	SessionKey string    `json:"session_key"`
	CaseID     uuid.UUID `json:"case_id"`
	FolderID   uuid.UUID `json:"folder_id"`
	FileName   string    `json:"file_name"`
	BlobKey    string    `json:"blob_key"`
	SizeBytes  int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// CaseFile is a confirmed, queryable file attached to a folder. It is
// created only by the commit coordinator, from exactly one draft; the
// blob key is copied verbatim, never re-written.
type CaseFile struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	FolderID  uuid.UUID `json:"folder_id"`
	FileName  string    `json:"file_name"`
	BlobKey   string    `json:"blob_key"`
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}
