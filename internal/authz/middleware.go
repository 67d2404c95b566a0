package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/estateline/estateline/internal/platform/httpx"
	"github.com/estateline/estateline/internal/shared"
)

// TokenVerifier resolves a bearer token to a stable user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// CallerLoader resolves a user id to a fully populated Caller.
type CallerLoader interface {
	LoadCaller(ctx context.Context, userID string) (Caller, error)
}

// Middleware resolves the caller behind each request: bearer token → identity
// provider → account store. Handlers downstream read the caller from context
// and consult Decide; nothing here grants access by itself.
type Middleware struct {
	Verifier TokenVerifier
	Loader   CallerLoader
	Logger   *slog.Logger
}

// ResolveCaller authenticates the request and attaches the caller to the
// request context. Missing or rejected credentials end the request with 401;
// a verified token whose profile row is gone is treated the same way.
func (m Middleware) ResolveCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		userID, err := m.Verifier.Verify(r.Context(), token)
		if err != nil {
			m.logAuthFailure("verify token", err)
			httpx.RespondError(w, err)
			return
		}
		caller, err := m.Loader.LoadCaller(r.Context(), userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				// Token is valid but no profile exists; do not reveal which.
				httpx.RespondError(w, shared.ErrInvalidCredential)
				return
			}
			m.logAuthFailure("load caller", err)
			httpx.RespondError(w, err)
			return
		}
		ctx := ContextWithCaller(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) logAuthFailure(op string, err error) {
	var upstream *shared.UpstreamError
	if m.Logger != nil && errors.As(err, &upstream) {
		m.Logger.Error(op, slog.Any("error", err))
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", shared.ErrMissingCredential
	}
	return header[len(prefix):], nil
}
