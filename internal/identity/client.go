// Package identity wraps the external identity provider: bearer-token
// verification for inbound requests and the admin account API used by
// provisioning. It never inspects tokens itself; all cryptographic
// verification happens provider-side.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/estateline/estateline/internal/shared"
)

// Client calls the identity provider's REST API.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient constructs a client. serviceKey authenticates admin calls; it is
// never attached to token verification requests.
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify resolves a bearer token to the caller's stable user id. The provider
// rejecting the token maps to ErrInvalidCredential; transport failures are
// upstream errors.
func (c *Client) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return "", shared.NewUpstreamError("identity verify", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", shared.NewUpstreamError("identity verify", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", shared.ErrInvalidCredential
	default:
		return "", shared.NewUpstreamError("identity verify", fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.ID == "" {
		return "", shared.ErrInvalidCredential
	}
	return body.ID, nil
}

// Account is a provider-side identity record.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CreateAccount provisions an identity record with a confirmed email.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	payload, err := json.Marshal(map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	})
	if err != nil {
		return Account{}, shared.NewUpstreamError("identity create", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/users", bytes.NewReader(payload))
	if err != nil {
		return Account{}, shared.NewUpstreamError("identity create", err)
	}
	c.authorizeAdmin(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Account{}, shared.NewUpstreamError("identity create", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return Account{}, shared.NewUpstreamError("identity create", fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return Account{}, shared.NewUpstreamError("identity create", err)
	}
	if account.ID == "" {
		return Account{}, shared.NewUpstreamError("identity create", fmt.Errorf("provider returned no account id"))
	}
	return account, nil
}

// DeleteAccount removes an identity record. Used as the compensating step
// when profile creation fails after the account exists.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/admin/users/"+id, nil)
	if err != nil {
		return shared.NewUpstreamError("identity delete", err)
	}
	c.authorizeAdmin(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.NewUpstreamError("identity delete", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return shared.NewUpstreamError("identity delete", fmt.Errorf("provider returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) authorizeAdmin(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}
