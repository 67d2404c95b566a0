package httpx

import (
	"errors"
	"net/http"

	"github.com/estateline/estateline/internal/shared"
)

// RespondError maps the domain error taxonomy onto HTTP statuses. Upstream
// detail never reaches the client; callers are expected to log it.
func RespondError(w http.ResponseWriter, err error) {
	var validationErr *shared.ValidationError
	var authzErr *shared.AuthzError

	switch {
	case errors.Is(err, shared.ErrMissingCredential):
		Error(w, http.StatusUnauthorized, shared.ErrMissingCredential.Error())
	case errors.Is(err, shared.ErrInvalidCredential):
		Error(w, http.StatusUnauthorized, shared.ErrInvalidCredential.Error())
	case errors.As(err, &validationErr):
		Error(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &authzErr):
		Error(w, http.StatusForbidden, authzErr.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, shared.ErrConflict):
		Error(w, http.StatusConflict, shared.ErrConflict.Error())
	case errors.Is(err, shared.ErrPartialPermissionUpdate):
		Error(w, http.StatusInternalServerError, shared.ErrPartialPermissionUpdate.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// MethodNotAllowed is the chi fallback handler for unsupported methods.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// NotFound is the chi fallback handler for unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusNotFound, "not found")
}
