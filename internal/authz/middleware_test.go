package authz_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/estateline/estateline/internal/authz"
	"github.com/estateline/estateline/internal/shared"
)

type fakeVerifier struct {
	users map[string]string
}

func (f fakeVerifier) Verify(ctx context.Context, token string) (string, error) {
	if id, ok := f.users[token]; ok {
		return id, nil
	}
	return "", shared.ErrInvalidCredential
}

type fakeLoader struct {
	callers map[string]authz.Caller
}

func (f fakeLoader) LoadCaller(ctx context.Context, userID string) (authz.Caller, error) {
	if caller, ok := f.callers[userID]; ok {
		return caller, nil
	}
	return authz.Caller{}, shared.ErrNotFound
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	mw := authz.Middleware{
		Verifier: fakeVerifier{users: map[string]string{
			"good":     "user-1",
			"orphaned": "user-gone",
		}},
		Loader: fakeLoader{callers: map[string]authz.Caller{
			"user-1": {
				ID:       "user-1",
				Role:     authz.RoleCoAdmin,
				IsActive: true,
				Capabilities: authz.CapabilitySet{
					CanManageBuildings: true,
				},
				Grants: map[string]struct{}{"estate-b": {}, "estate-a": {}},
			},
		}},
	}

	r := chi.NewRouter()
	r.Route("/me", func(r chi.Router) {
		r.Use(mw.ResolveCaller)
		authz.NewPermissionsHandler(nil).MountRoutes(r)
	})
	return r
}

func get(router http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestResolveCallerMissingHeader(t *testing.T) {
	router := newRouter(t)
	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer "} {
		res := get(router, "/me/permissions", header)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, res.Code)
		}
	}
}

func TestResolveCallerRejectedToken(t *testing.T) {
	router := newRouter(t)
	res := get(router, "/me/permissions", "Bearer forged")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestResolveCallerMissingProfileStays401(t *testing.T) {
	// A verified token whose profile row is gone must not reveal the
	// difference between "bad token" and "no account".
	router := newRouter(t)
	res := get(router, "/me/permissions", "Bearer orphaned")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestMyPermissions(t *testing.T) {
	router := newRouter(t)
	res := get(router, "/me/permissions", "Bearer good")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := res.Body.String()
	if !strings.Contains(body, `"role":"co_admin"`) {
		t.Fatalf("missing role: %s", body)
	}
	if !strings.Contains(body, `"can_manage_buildings":true`) {
		t.Fatalf("missing capability: %s", body)
	}
	// Estate ids come back sorted for stable client rendering.
	if !strings.Contains(body, `"estate_ids":["estate-a","estate-b"]`) {
		t.Fatalf("missing sorted estates: %s", body)
	}
}
