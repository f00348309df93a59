// Package graphsdk is a small client for the Microsoft identity platform and
// the Microsoft Graph API. It covers the handful of calls the bot needs:
// validating an application's credentials, deriving a tenant from an email
// address, and checking that a delegated access token is still usable.
package graphsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultLoginBaseURL = "https://login.microsoftonline.com"
	DefaultGraphBaseURL = "https://graph.microsoft.com"

	// appScope is the scope requested during the client-credentials probe
	// used to validate application credentials.
	appScope = "https://graph.microsoft.com/.default"
)

// Client talks to the Microsoft identity platform.
type Client struct {
	LoginBaseURL string
	GraphBaseURL string
	HTTPClient   *http.Client
}

// NewClient creates a client with the public Microsoft endpoints and a
// request timeout. Individual calls still honour their context deadline.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		LoginBaseURL: DefaultLoginBaseURL,
		GraphBaseURL: DefaultGraphBaseURL,
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

// Identity is the remote principal a token resolves to.
type Identity struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// ResolveTenant derives the tenant identifier from an email's domain part.
// This is a local computation; the identity platform accepts the domain as a
// tenant discriminator on its v2.0 endpoints.
func (c *Client) ResolveTenant(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", fmt.Errorf("graphsdk: email %q has no domain part", email)
	}
	return email[at+1:], nil
}

// ValidateApplication confirms the given application credentials are accepted
// by the identity platform by attempting a client-credentials grant. The
// issued token is discarded; only acceptance matters.
func (c *Client) ValidateApplication(ctx context.Context, tenant, clientID, clientSecret string) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("scope", appScope)

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimSuffix(c.LoginBaseURL, "/"), tenant)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("graphsdk: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return parseErrorResponse(resp.StatusCode, body)
}

// ValidateToken confirms a delegated access token is usable by fetching the
// signed-in principal from Graph.
func (c *Client) ValidateToken(ctx context.Context, accessToken string) (Identity, error) {
	endpoint := strings.TrimSuffix(c.GraphBaseURL, "/") + "/v1.0/me"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("graphsdk: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Identity{}, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identity{}, fmt.Errorf("graphsdk: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Identity{}, parseErrorResponse(resp.StatusCode, body)
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return Identity{}, fmt.Errorf("graphsdk: failed to decode response: %w", err)
	}
	return id, nil
}
