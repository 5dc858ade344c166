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

	"github.com/luminapos/lumina-saas/domains/tenants/be/service"
	platformauth "github.com/luminapos/lumina-saas/platform/go/auth"
	"github.com/luminapos/lumina-saas/platform/go/httpjson"
)

// Handler exposes the company registry over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the company routes. The router is expected to already
// carry the authentication middleware; role checks happen per route.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(platformauth.RequireSuperuser)
		r.Post("/companies", h.create)
		r.Patch("/companies/{companyID}", h.update)
		r.Post("/companies/{companyID}/rotate-credentials", h.rotateCredentials)
		r.Delete("/companies/{companyID}", h.deprovision)
	})
	r.Get("/companies", h.list)
	r.Get("/companies/{companyID}", h.get)
}

type createRequest struct {
	Name           string `json:"name"`
	DeploymentType string `json:"deployment_type"`
}

type updateRequest struct {
	Name *string `json:"name"`
}

// companyResponse is the wire shape of a company. The database secret is
// never part of any response.
type companyResponse struct {
	CompanyID      string    `json:"company_id"`
	Name           string    `json:"name"`
	DeploymentType string    `json:"deployment_type"`
	DatabaseName   string    `json:"database_name,omitempty"`
	DatabaseUser   string    `json:"database_user,omitempty"`
	Provisioned    bool      `json:"provisioned"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid request body"))
		return
	}

	t, err := h.svc.Provision(r.Context(), service.CreateInput{
		Name:           req.Name,
		DeploymentType: service.DeploymentType(req.DeploymentType),
	})
	if errors.Is(err, service.ErrAlreadyProvisioned) {
		// The registry record was created; report the partial outcome.
		w.Header().Set("Location", fmt.Sprintf("/api/v1/companies/%s", t.ID))
		httpjson.WriteProblem(w, httpjson.ProblemConflict(err.Error()))
		return
	}
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/companies/%s", t.ID))
	httpjson.WriteJSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteProblem(w, httpjson.ProblemForbidden("missing credentials"))
		return
	}

	// Tenant principals see their own company only.
	if principal.Role != platformauth.RoleSuperuser {
		if principal.CompanyID == nil {
			httpjson.WriteProblem(w, httpjson.ProblemForbidden("no company scope"))
			return
		}

		out := make([]companyResponse, 0, 1)
		t, err := h.svc.Get(r.Context(), *principal.CompanyID)
		switch {
		case errors.Is(err, service.ErrNotFound):
		case err != nil:
			h.writeError(w, err, http.StatusInternalServerError)
			return
		default:
			out = append(out, toResponse(t))
		}
		httpjson.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
		return
	}

	items, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}

	out := make([]companyResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toResponse(t))
	}
	httpjson.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.companyID(w, r)
	if !ok {
		return
	}

	// Tenant principals may only read their own company.
	principal, ok := platformauth.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteProblem(w, httpjson.ProblemForbidden("missing credentials"))
		return
	}
	if principal.Role != platformauth.RoleSuperuser {
		if principal.CompanyID == nil || *principal.CompanyID != id {
			httpjson.WriteProblem(w, httpjson.ProblemForbidden("company access denied"))
			return
		}
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid request body"))
		return
	}

	t, err := h.svc.Update(r.Context(), id, service.UpdateInput{Name: req.Name})
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) rotateCredentials(w http.ResponseWriter, r *http.Request) {
	id, ok := h.companyID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.RotateCredentials(r.Context(), id)
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) deprovision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.companyID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Deprovision(r.Context(), id); err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) companyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpjson.WriteProblem(w, httpjson.ProblemValidation("invalid company id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, defaultStatus int) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httpjson.WriteProblem(w, httpjson.ProblemValidation(verr.Error()))
	case errors.Is(err, service.ErrNotFound):
		httpjson.WriteProblem(w, httpjson.ProblemNotFound("company not found"))
	case errors.Is(err, service.ErrDuplicateName):
		httpjson.WriteProblem(w, httpjson.ProblemConflict(err.Error()))
	default:
		h.logger.Error("company operation failed", zap.Error(err))
		httpjson.WriteProblem(w, httpjson.ProblemInternal())
	}
}

func toResponse(t service.Tenant) companyResponse {
	return companyResponse{
		CompanyID:      t.ID.String(),
		Name:           t.Name,
		DeploymentType: string(t.DeploymentType),
		DatabaseName:   t.DatabaseName,
		DatabaseUser:   t.DatabaseUser,
		Provisioned:    t.Provisioned,
		CreatedAt:      t.CreatedAt,
	}
}
