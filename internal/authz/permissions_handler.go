package authz

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/estateline/estateline/internal/platform/httpx"
	"github.com/estateline/estateline/internal/shared"
)

// PermissionsHandler exposes the caller's own effective permission view for
// display gating in clients. It is read-only and never an enforcement point;
// the server always re-evaluates Decide on mutation.
type PermissionsHandler struct {
	logger *slog.Logger
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger) *PermissionsHandler {
	return &PermissionsHandler{logger: logger}
}

// MountRoutes registers the permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.myPermissions)
}

type permissionsResponse struct {
	UserID       string        `json:"user_id"`
	Role         Role          `json:"role"`
	IsActive     bool          `json:"is_active"`
	Capabilities CapabilitySet `json:"capabilities"`
	EstateIDs    []string      `json:"estate_ids"`
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrMissingCredential)
		return
	}
	estates := make([]string, 0, len(caller.Grants))
	for id := range caller.Grants {
		estates = append(estates, id)
	}
	sort.Strings(estates)
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		UserID:       caller.ID,
		Role:         caller.Role,
		IsActive:     caller.IsActive,
		Capabilities: caller.Capabilities,
		EstateIDs:    estates,
	})
}
