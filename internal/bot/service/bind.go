package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
	"github.com/aussiebroadwan/graphbot/pkg/graphsdk"
	"github.com/aussiebroadwan/graphbot/pkg/idx"
	"github.com/aussiebroadwan/graphbot/pkg/slogx"

	"github.com/google/uuid"
)

var (
	ErrInvalidClientID = errors.New("client id is not a valid GUID")
	ErrInvalidEmail    = errors.New("email address is malformed")
	ErrInvalidPayload  = errors.New("token payload is malformed")
	ErrAppNotFound     = errors.New("app not found")
	ErrAuthNotFound    = errors.New("bound auth not found")
	ErrDuplicateApp    = errors.New("client id already registered")
)

// Directory is the capability set the binding service needs from the external
// identity service. graphsdk.Client satisfies it; tests supply a fake.
type Directory interface {
	// ResolveTenant derives a tenant identifier from an email's domain.
	ResolveTenant(email string) (string, error)

	// ValidateApplication confirms the application credentials are accepted
	// by the remote identity service.
	ValidateApplication(ctx context.Context, tenant, clientID, clientSecret string) error

	// ValidateToken confirms a bound token is usable and returns the remote
	// principal it resolves to.
	ValidateToken(ctx context.Context, accessToken string) (graphsdk.Identity, error)
}

// BindingService owns the credential lifecycle: app registration, the
// authorization-URL construction, token binding and unbinding, and credential
// queries. All operations are scoped to the calling user.
type BindingService struct {
	Store     store.Store
	Directory Directory

	// Scope and RedirectURL are the fixed configuration constants baked into
	// every authorization URL.
	Scope       string
	RedirectURL string

	// AppPortalURL is the base management URL returned after an app deletion
	// so the user can finish cleanup on the remote portal.
	AppPortalURL string

	// ValidateTokens enables a directory round trip on every bind to confirm
	// the pasted token is live before storing it.
	ValidateTokens bool
}

// GetAuthURL builds the authorization URL for the registered app, resolving
// the tenant from the app's email. Returns the app's display name alongside
// the URL.
func (s *BindingService) GetAuthURL(ctx context.Context, userID int64, clientID string) (string, string, error) {
	app, err := s.getOwnedApp(ctx, userID, clientID)
	if err != nil {
		return "", "", err
	}

	tenant, err := s.Directory.ResolveTenant(app.Email)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidEmail, app.Email)
	}

	authURL := fmt.Sprintf(
		"%s/%s/oauth2/v2.0/authorize?client_id=%s&response_type=code&redirect_uri=%s&response_mode=query&scope=%s",
		graphsdk.DefaultLoginBaseURL,
		tenant,
		app.ID,
		url.QueryEscape(s.RedirectURL),
		url.QueryEscape(s.Scope),
	)

	return app.Name, authURL, nil
}

// RegisterApp validates and stores a new application credential set for the
// user, creating the user record on first registration.
//
// Local validation runs before any network call; directory validation runs
// before the insert so no lock or transaction spans the network round trip.
// The user upsert and app insert share one transaction, and a concurrent
// registration race on the same client id resolves to exactly one winner via
// the primary-key conflict.
func (s *BindingService) RegisterApp(
	ctx context.Context,
	userID int64,
	username, email, clientID, clientSecret, appName string,
) error {
	l := slogx.FromContext(ctx)

	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return ErrInvalidClientID
	}

	tenant, err := s.Directory.ResolveTenant(email)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}

	if err := s.Directory.ValidateApplication(ctx, tenant, clientID, clientSecret); err != nil {
		l.Info("application validation failed", "client_id", clientID, "error", err)
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpsertUser(ctx, userID, username); err != nil {
			return err
		}
		return tx.Apps().CreateApp(ctx, domain.App{
			ID:     clientID,
			UserID: userID,
			Name:   appName,
			Email:  email,
			Secret: clientSecret,
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrDuplicateApp
		}
		l.Error("failed to store registered app", "client_id", clientID, "error", err)
		return err
	}

	l.Info("app registered", "client_id", clientID, "user_id", userID, "name", appName)
	return nil
}

// DeleteApp removes the registered app and all its bound auths, and returns
// the management URL where the user can finish cleanup remotely.
func (s *BindingService) DeleteApp(ctx context.Context, userID int64, clientID string) (string, error) {
	l := slogx.FromContext(ctx)

	app, err := s.getOwnedApp(ctx, userID, clientID)
	if err != nil {
		return "", err
	}

	// FK cascade removes the app's bound_auths in the same statement.
	if err := s.Store.Apps().DeleteApp(ctx, app.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrAppNotFound
		}
		l.Error("failed to delete app", "client_id", clientID, "error", err)
		return "", err
	}

	l.Info("app deleted", "client_id", clientID, "user_id", userID)
	return strings.TrimSuffix(s.AppPortalURL, "/") + "/" + app.ID, nil
}

// BindAuth parses an OAuth callback payload and stores the delegated token
// against the registered app under the given name.
func (s *BindingService) BindAuth(ctx context.Context, userID int64, clientID, payload, name string) error {
	l := slogx.FromContext(ctx)

	token, err := graphsdk.ParseTokenPayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	app, err := s.getOwnedApp(ctx, userID, clientID)
	if err != nil {
		return err
	}

	if s.ValidateTokens {
		if _, err := s.Directory.ValidateToken(ctx, token.AccessToken); err != nil {
			l.Info("token validation failed", "client_id", clientID, "error", err)
			return err
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}

	err = s.Store.BoundAuths().CreateBoundAuth(ctx, domain.BoundAuth{
		ID:           idx.New().String(),
		AppID:        app.ID,
		Name:         name,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
		ExpiresAt:    token.ExpiryAt(time.Now().UTC()),
	})
	if err != nil {
		l.Error("failed to store bound auth", "client_id", clientID, "error", err)
		return err
	}

	l.Info("auth bound", "client_id", clientID, "user_id", userID, "name", name)
	return nil
}

// UnbindAuth deletes the user's bound auth by id.
func (s *BindingService) UnbindAuth(ctx context.Context, userID int64, authID string) error {
	if _, err := s.getOwnedAuth(ctx, userID, authID); err != nil {
		return err
	}

	if err := s.Store.BoundAuths().DeleteBoundAuth(ctx, authID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAuthNotFound
		}
		return err
	}

	slogx.FromContext(ctx).Info("auth unbound", "auth_id", authID, "user_id", userID)
	return nil
}

// AppCount counts the user's registered apps.
func (s *BindingService) AppCount(ctx context.Context, userID int64) (int, error) {
	return s.Store.Apps().CountAppsByUserID(ctx, userID)
}

// AuthCount counts the bound auths transitively owned by the user.
func (s *BindingService) AuthCount(ctx context.Context, userID int64) (int, error) {
	return s.Store.BoundAuths().CountBoundAuthsByUserID(ctx, userID)
}

// ListApps returns the user's (clientId, name) pairs in creation order.
func (s *BindingService) ListApps(ctx context.Context, userID int64) ([]domain.AppSummary, error) {
	apps, err := s.Store.Apps().ListAppsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.AppSummary, len(apps))
	for i, a := range apps {
		summaries[i] = domain.AppSummary{ID: a.ID, Name: a.Name}
	}
	return summaries, nil
}

// ListAuths returns the user's bound auths in creation order.
func (s *BindingService) ListAuths(ctx context.Context, userID int64) ([]domain.BoundAuth, error) {
	return s.Store.BoundAuths().ListBoundAuthsByUserID(ctx, userID)
}

// GetAppInfo returns the full app record with the secret redacted. The
// directory consumes the secret once at validation time; it is never echoed
// back.
func (s *BindingService) GetAppInfo(ctx context.Context, userID int64, clientID string) (domain.App, error) {
	app, err := s.getOwnedApp(ctx, userID, clientID)
	if err != nil {
		return domain.App{}, err
	}
	app.Secret = ""
	return app, nil
}

// GetAuthInfo returns the user's bound auth by id.
func (s *BindingService) GetAuthInfo(ctx context.Context, userID int64, authID string) (domain.BoundAuth, error) {
	return s.getOwnedAuth(ctx, userID, authID)
}

// ResolveCredential returns the user's most recently bound auth. It is the
// lookup the external task runner uses to execute API tasks on the user's
// behalf.
func (s *BindingService) ResolveCredential(ctx context.Context, userID int64) (domain.BoundAuth, error) {
	auth, err := s.Store.BoundAuths().GetLatestBoundAuthByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.BoundAuth{}, ErrAuthNotFound
		}
		return domain.BoundAuth{}, err
	}
	return auth, nil
}

// getOwnedApp loads an app and verifies ownership. Apps belonging to another
// user are reported as not found so existence never leaks across users.
func (s *BindingService) getOwnedApp(ctx context.Context, userID int64, clientID string) (domain.App, error) {
	if strings.TrimSpace(clientID) == "" {
		return domain.App{}, ErrAppNotFound
	}

	app, err := s.Store.Apps().GetAppByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.App{}, ErrAppNotFound
		}
		return domain.App{}, err
	}
	if app.UserID != userID {
		return domain.App{}, ErrAppNotFound
	}
	return app, nil
}

func (s *BindingService) getOwnedAuth(ctx context.Context, userID int64, authID string) (domain.BoundAuth, error) {
	auth, err := s.Store.BoundAuths().GetBoundAuthByID(ctx, authID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.BoundAuth{}, ErrAuthNotFound
		}
		return domain.BoundAuth{}, err
	}

	app, err := s.Store.Apps().GetAppByID(ctx, auth.AppID)
	if err != nil || app.UserID != userID {
		return domain.BoundAuth{}, ErrAuthNotFound
	}
	return auth, nil
}
