package caseupload

import "github.com/casevault/casevault/pkg/caseupload/validate"

// UploadFile is one file in an upload batch, exactly as the client
// declared it.
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Content  []byte
}

// ValidateAndStageRequest carries an upload batch through validation and,
// if everything passes, into staging.
type ValidateAndStageRequest struct {
	Scope      StagingScope
	Files      []UploadFile
	Policy     validate.Policy
	QuotaBytes int64
}

// StageResult reports what happened to an upload batch. When Violations
// is non-empty nothing was staged; otherwise Staged holds one draft per
// uploaded file.
type StageResult struct {
	Staged     []*DraftFile         `json:"staged"`
	Violations []validate.Violation `json:"violations"`
}
