package provisioning

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/estateline/estateline/internal/authz"
	"github.com/estateline/estateline/internal/platform/httpx"
	"github.com/estateline/estateline/internal/shared"
)

// Handler wires the privileged user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes. The caller-resolving middleware must
// already be installed on the router group.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createUser)
	r.Post("/assign-estate", h.assignEstate)
	r.Post("/deactivate", h.deactivateUser)
	r.Post("/permissions", h.editPermissions)
	r.Post("/role", h.updateRole)
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type createUserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrMissingCredential)
		return
	}
	var req createUserRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	created, err := h.service.CreateUser(r.Context(), caller, CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     authz.Role(req.Role),
	})
	if err != nil {
		h.logFailure("create user", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, createUserResponse{
		ID:       created.Profile.ID,
		Email:    created.Email,
		FullName: created.Profile.FullName,
		Role:     string(created.Profile.Role),
	})
}

type assignEstateRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required,uuid"`
	EstateID     string `json:"estate_id" validate:"required"`
}

func (h *Handler) assignEstate(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrMissingCredential)
		return
	}
	var req assignEstateRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.AssignEstate(r.Context(), caller, req.TargetUserID, req.EstateID); err != nil {
		h.logFailure("assign estate", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Estate assigned successfully"})
}

type deactivateUserRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrMissingCredential)
		return
	}
	var req deactivateUserRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	profile, err := h.service.DeactivateUser(r.Context(), caller, req.ID)
	if err != nil {
		h.logFailure("deactivate user", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type editPermissionsRequest struct {
	TargetUserID string              `json:"target_user_id" validate:"required,uuid"`
	Capabilities authz.CapabilitySet `json:"capabilities"`
	// EstateIDs replaces the grant set wholesale; an empty list revokes all.
	EstateIDs []string `json:"estate_ids"`
}

func (h *Handler) editPermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrMissingCredential)
		return
	}
	var req editPermissionsRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.EditPermissions(r.Context(), caller, req.TargetUserID, req.Capabilities, req.EstateIDs); err != nil {
		h.logFailure("edit permissions", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Permissions updated successfully"})
}

type updateRoleRequest struct {
	ID   string `json:"id" validate:"required,uuid"`
	Role string `json:"role" validate:"required"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrMissingCredential)
		return
	}
	var req updateRoleRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	profile, err := h.service.UpdateRole(r.Context(), caller, req.ID, authz.Role(req.Role))
	if err != nil {
		h.logFailure("update role", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

// decodeValid decodes the JSON body and applies the struct's validation tags.
// Field failures map to the API's flat validation message.
func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return shared.NewValidationError("", "Missing required fields")
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() != "required" {
			return shared.NewValidationError(fieldErrs[0].Field(), "is invalid")
		}
		return shared.NewValidationError("", "Missing required fields")
	}
	return nil
}

// logFailure logs upstream detail server-side; RespondError keeps it out of
// the client body.
func (h *Handler) logFailure(op string, err error) {
	var upstream *shared.UpstreamError
	if h.logger != nil && errors.As(err, &upstream) {
		h.logger.Error(op, slog.Any("error", err))
	}
}
