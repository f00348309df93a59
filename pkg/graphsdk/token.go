package graphsdk

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoAccessToken reports a token payload that parsed but carries no
// access token.
var ErrNoAccessToken = errors.New("graphsdk: payload has no access_token")

// TokenPayload is the OAuth2 token response returned by the identity
// platform's authorization-code flow.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ParseTokenPayload parses the raw text a user pastes back after completing
// the authorization-code flow. JSON token responses are accepted, and so is
// the raw query string of the redirect (access_token=...&...), since users
// copy whichever form their browser shows them.
func ParseTokenPayload(raw string) (TokenPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPayload{}, ErrNoAccessToken
	}

	if strings.HasPrefix(raw, "{") {
		var p TokenPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return TokenPayload{}, err
		}
		if p.AccessToken == "" {
			return TokenPayload{}, ErrNoAccessToken
		}
		return p, nil
	}

	vals, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return TokenPayload{}, err
	}
	if vals.Get("access_token") == "" {
		return TokenPayload{}, ErrNoAccessToken
	}
	p := TokenPayload{
		AccessToken:  vals.Get("access_token"),
		RefreshToken: vals.Get("refresh_token"),
		TokenType:    vals.Get("token_type"),
		Scope:        vals.Get("scope"),
	}
	if v := vals.Get("expires_in"); v != "" {
		_ = json.Unmarshal([]byte(v), &p.ExpiresIn)
	}
	return p, nil
}

// ExpiryAt resolves the token's expiry. It prefers the explicit expires_in
// hint; failing that it reads the exp claim from the access token itself.
// The claim is read without signature verification since we only need the
// timestamp, not a trust decision. Returns nil when no expiry is knowable.
func (p TokenPayload) ExpiryAt(now time.Time) *time.Time {
	if p.ExpiresIn > 0 {
		t := now.Add(time.Duration(p.ExpiresIn) * time.Second)
		return &t
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(p.AccessToken, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
