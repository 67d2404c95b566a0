package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/estateline/estateline/internal/shared"
)

func TestVerifyResolvesUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"9f1c2a34-0000-4000-8000-000000000001"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key")

	id, err := client.Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "9f1c2a34-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected id %q", id)
	}

	if _, err := client.Verify(context.Background(), "bad-token"); !errors.Is(err, shared.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyProviderOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key")
	_, err := client.Verify(context.Background(), "any")
	var upstream *shared.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestCreateAndDeleteAccount(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer service-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/users":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"new-account","email":"new@estateline.test"}`))
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key")

	account, err := client.CreateAccount(context.Background(), "new@estateline.test", "hunter2hunter2")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if account.ID != "new-account" {
		t.Fatalf("unexpected account id %q", account.ID)
	}

	if err := client.DeleteAccount(context.Background(), account.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if deleted != "/admin/users/new-account" {
		t.Fatalf("delete hit %q", deleted)
	}
}
