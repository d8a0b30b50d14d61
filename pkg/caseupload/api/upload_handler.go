package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/casevault/casevault/pkg/caseupload"
	"github.com/casevault/casevault/pkg/caseupload/validate"
)

// maxUploadMemory bounds how much of a multipart body is held in memory
// before spilling to disk.
const maxUploadMemory = 32 << 20

// UploadHandler exposes the upload core to the web layer.
type UploadHandler struct {
	service    caseupload.Service
	policy     validate.Policy
	quotaBytes int64
}

func NewUploadHandler(service caseupload.Service, policy validate.Policy, quotaBytes int64) *UploadHandler {
	return &UploadHandler{
		service:    service,
		policy:     policy,
		quotaBytes: quotaBytes,
	}
}

// Routes returns the router for upload endpoints. Every route requires a
// session identity resolved by SessionIdentity.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(SessionIdentity)
	r.Post("/", h.Stage)
	r.Get("/", h.ListDrafts)
	r.Post("/commit", h.Commit)
	r.Delete("/{draft_id}", h.DeleteDraft)
	r.Delete("/", h.DeleteAllDrafts)
	r.Get("/committed", h.ListCaseFiles)
	return r
}

// StageResponse is the JSON shape returned by Stage
type StageResponse struct {
	Staged     []*caseupload.DraftFile `json:"staged"`
	Violations []validate.Violation    `json:"violations"`
}

// CommitResponse reports how many drafts were promoted
type CommitResponse struct {
	Count int `json:"count"`
}

// Stage accepts a multipart upload batch, validates it, and stages every
// file on success. Violations come back with 422 so the client can show
// all of them in one round trip.
func (h *UploadHandler) Stage(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	var files []caseupload.UploadFile
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				slog.Error("Failed to open multipart file", "file_name", header.Filename, "error", err)
				http.Error(w, "unreadable multipart file", http.StatusBadRequest)
				return
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				slog.Error("Failed to read multipart file", "file_name", header.Filename, "error", err)
				http.Error(w, "unreadable multipart file", http.StatusBadRequest)
				return
			}

			files = append(files, caseupload.UploadFile{
				Name:     header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Size:     header.Size,
				Content:  content,
			})
		}
	}

	if len(files) == 0 {
		http.Error(w, "no files in upload", http.StatusBadRequest)
		return
	}

	result, err := h.service.ValidateAndStage(r.Context(), caseupload.ValidateAndStageRequest{
		Scope:      scope,
		Files:      files,
		Policy:     h.policy,
		QuotaBytes: h.quotaBytes,
	})
	if err != nil {
		slog.Error("Failed to stage upload", "case_id", scope.CaseID, "error", err)
		http.Error(w, "upload failed", http.StatusBadGateway)
		return
	}

	if len(result.Violations) > 0 {
		render.Status(r, http.StatusUnprocessableEntity)
	} else {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, StageResponse{Staged: result.Staged, Violations: result.Violations})
}

// ListDrafts returns the pending uploads for the caller's scope
func (h *UploadHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	drafts, err := h.service.ListDrafts(r.Context(), scope)
	if err != nil {
		slog.Error("Failed to list drafts", "case_id", scope.CaseID, "error", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, drafts)
}

// Commit promotes every staged draft in the caller's scope
func (h *UploadHandler) Commit(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	count, err := h.service.Commit(r.Context(), scope)
	if err != nil {
		if errors.Is(err, caseupload.ErrCommitConflict) {
			http.Error(w, "drafts were committed concurrently", http.StatusConflict)
			return
		}
		slog.Error("Failed to commit drafts", "case_id", scope.CaseID, "error", err)
		http.Error(w, "commit failed, no changes were made, retry is safe", http.StatusBadGateway)
		return
	}

	render.JSON(w, r, CommitResponse{Count: count})
}

// DeleteDraft abandons a single staged file
func (h *UploadHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(chi.URLParam(r, "draft_id"))
	if err != nil {
		http.Error(w, "invalid draft id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteDraft(r.Context(), SessionKey(r.Context()), draftID); err != nil {
		slog.Error("Failed to delete draft", "draft_id", draftID, "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllDrafts abandons the caller's whole staging scope
func (h *UploadHandler) DeleteAllDrafts(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAllDrafts(r.Context(), scope); err != nil {
		slog.Error("Failed to delete drafts", "case_id", scope.CaseID, "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCaseFiles returns the committed files for the folder in the query
func (h *UploadHandler) ListCaseFiles(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(r.URL.Query().Get("case_id"))
	if err != nil {
		http.Error(w, "invalid case_id", http.StatusBadRequest)
		return
	}
	folderID, err := uuid.Parse(r.URL.Query().Get("folder_id"))
	if err != nil {
		http.Error(w, "invalid folder_id", http.StatusBadRequest)
		return
	}

	files, err := h.service.ListCaseFiles(r.Context(), caseID, folderID)
	if err != nil {
		slog.Error("Failed to list case files", "case_id", caseID, "error", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, files)
}

func (h *UploadHandler) scopeFromRequest(w http.ResponseWriter, r *http.Request) (caseupload.StagingScope, bool) {
	caseID, err := uuid.Parse(r.URL.Query().Get("case_id"))
	if err != nil {
		http.Error(w, "invalid case_id", http.StatusBadRequest)
		return caseupload.StagingScope{}, false
	}

	folderID, err := uuid.Parse(r.URL.Query().Get("folder_id"))
	if err != nil {
		http.Error(w, "invalid folder_id", http.StatusBadRequest)
		return caseupload.StagingScope{}, false
	}

	return caseupload.StagingScope{
		SessionKey: SessionKey(r.Context()),
		CaseID:     caseID,
		FolderID:   folderID,
	}, true
}
