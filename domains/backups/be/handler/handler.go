package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luminapos/lumina-saas/domains/backups/be/service"
	platformauth "github.com/luminapos/lumina-saas/platform/go/auth"
	"github.com/luminapos/lumina-saas/platform/go/httpjson"
	"github.com/luminapos/lumina-saas/platform/go/naming"
)

// Handler exposes the backup manifest and the snapshot/restore operations.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("backups service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the backup routes. Snapshots and restores are superuser
// operations; tenants may read their own manifest entries.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(platformauth.RequireSuperuser)
		r.Post("/backups", h.create)
		r.Post("/backups/sweep", h.sweep)
		r.Post("/backups/{backupID}/restore", h.restore)
		r.Delete("/backups/{backupID}", h.delete)
	})
	r.Get("/backups", h.list)
	r.Get("/backups/{backupID}", h.get)
}

type createRequest struct {
	DatabaseName string `json:"database_name"`
	Description  string `json:"description"`
}

type sweepRequest struct {
	Description string `json:"description"`
}

type backupResponse struct {
	BackupID     string    `json:"backup_id"`
	DatabaseName string    `json:"database_name"`
	CompanyID    string    `json:"company_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Path         string    `json:"path"`
	Description  string    `json:"description,omitempty"`
}

type sweepResponse struct {
	Succeeded []backupResponse `json:"succeeded"`
	Failed    []failedBackup   `json:"failed"`
}

type failedBackup struct {
	DatabaseName string `json:"database_name"`
	Reason       string `json:"reason"`
}

// restoreResponse carries the manifest entry plus a warning that the
// database's security policy was replaced, since any manually adjusted
// grants are gone after a restore.
type restoreResponse struct {
	backupResponse
	Warning string `json:"warning"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid request body"))
		return
	}
	if req.DatabaseName == "" {
		httpjson.WriteProblem(w, httpjson.ProblemValidation("database_name is required"))
		return
	}

	b, err := h.svc.BackupOne(r.Context(), req.DatabaseName, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, toResponse(b))
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid request body"))
			return
		}
	}

	result, err := h.svc.BackupAll(r.Context(), req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := sweepResponse{
		Succeeded: make([]backupResponse, 0, len(result.Succeeded)),
		Failed:    make([]failedBackup, 0, len(result.Failed)),
	}
	for _, b := range result.Succeeded {
		out.Succeeded = append(out.Succeeded, toResponse(b))
	}
	for _, f := range result.Failed {
		out.Failed = append(out.Failed, failedBackup{DatabaseName: f.DatabaseName, Reason: f.Reason})
	}
	httpjson.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.backupID(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Restore(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, restoreResponse{
		backupResponse: toResponse(b),
		Warning: fmt.Sprintf("security policy reset to %s; manually adjusted grants were discarded",
			naming.DatabaseUserFor(b.DatabaseName)),
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.backupID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteProblem(w, httpjson.ProblemForbidden("missing credentials"))
		return
	}

	// Tenant principals see their own manifest entries only.
	var companyID *uuid.UUID
	if principal.Role != platformauth.RoleSuperuser {
		if principal.CompanyID == nil {
			httpjson.WriteProblem(w, httpjson.ProblemForbidden("no company scope"))
			return
		}
		companyID = principal.CompanyID
	} else if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid company_id filter"))
			return
		}
		companyID = &id
	}

	items, err := h.svc.List(r.Context(), companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]backupResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toResponse(b))
	}
	httpjson.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.backupID(w, r)
	if !ok {
		return
	}

	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteProblem(w, httpjson.ProblemForbidden("missing credentials"))
		return
	}

	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if principal.Role != platformauth.RoleSuperuser {
		if principal.CompanyID == nil || b.CompanyID == nil || *b.CompanyID != *principal.CompanyID {
			httpjson.WriteProblem(w, httpjson.ProblemForbidden("backup access denied"))
			return
		}
	}

	httpjson.WriteJSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) backupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "backupID"))
	if err != nil {
		httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid backup id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpjson.WriteProblem(w, httpjson.ProblemNotFound("backup not found"))
	case errors.Is(err, service.ErrArchiveNotFound):
		httpjson.WriteProblem(w, httpjson.ProblemConflict(err.Error()))
	case errors.Is(err, service.ErrMalformedArchive):
		httpjson.WriteProblem(w, httpjson.ProblemConflict(err.Error()))
	case errors.Is(err, service.ErrImmutable):
		httpjson.WriteProblem(w, httpjson.ProblemConflict(err.Error()))
	default:
		h.logger.Error("backup operation failed", zap.Error(err))
		httpjson.WriteProblem(w, httpjson.ProblemInternal())
	}
}

func toResponse(b service.Backup) backupResponse {
	out := backupResponse{
		BackupID:     b.ID.String(),
		DatabaseName: b.DatabaseName,
		CreatedAt:    b.CreatedAt,
		Path:         b.Path,
		Description:  b.Description,
	}
	if b.CompanyID != nil {
		out.CompanyID = b.CompanyID.String()
	}
	return out
}
