package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/graphbot/internal/bot/store"
	"github.com/aussiebroadwan/graphbot/pkg/cryptox"
	"github.com/aussiebroadwan/graphbot/pkg/slogx"
)

// SecretProvider answers whether a supplied secret matches the configured
// administrator secret. Injected so the secret can be rotated and tested
// without a process restart.
type SecretProvider interface {
	Verify(secret string) bool
}

// StaticSecretProvider holds an argon2 hash of a secret fixed at
// construction time. The plaintext is not retained.
type StaticSecretProvider struct {
	hash string
}

func NewStaticSecretProvider(secret string) (*StaticSecretProvider, error) {
	hash, err := cryptox.HashSecret(secret)
	if err != nil {
		return nil, err
	}
	return &StaticSecretProvider{hash: hash}, nil
}

func (p *StaticSecretProvider) Verify(secret string) bool {
	return cryptox.VerifySecret(secret, p.hash) == nil
}

// PermissionService elevates and revokes the administrator flag on user
// records, gated by the shared administrator secret.
type PermissionService struct {
	Store   store.Store
	Secrets SecretProvider
}

// AddAdminPermission grants the user the administrator flag when the
// supplied secret matches. A wrong secret is an expected outcome, not an
// error: it returns (false, nil) and changes no state.
func (s *PermissionService) AddAdminPermission(ctx context.Context, userID int64, username, suppliedSecret string) (bool, error) {
	l := slogx.FromContext(ctx)

	if !s.Secrets.Verify(suppliedSecret) {
		l.Info("admin elevation rejected", "user_id", userID)
		return false, nil
	}

	if err := s.Store.Users().SetAdmin(ctx, userID, username, true); err != nil {
		l.Error("failed to set admin flag", "user_id", userID, "error", err)
		return false, err
	}

	l.Info("admin permission granted", "user_id", userID)
	return true, nil
}

// RemoveAdminPermission unconditionally clears the administrator flag,
// upserting the user record if absent.
func (s *PermissionService) RemoveAdminPermission(ctx context.Context, userID int64, username string) error {
	l := slogx.FromContext(ctx)

	if err := s.Store.Users().SetAdmin(ctx, userID, username, false); err != nil {
		l.Error("failed to clear admin flag", "user_id", userID, "error", err)
		return err
	}

	l.Info("admin permission removed", "user_id", userID)
	return nil
}

// IsAdmin reports whether the user currently holds the administrator flag.
// Unknown users are not admins.
func (s *PermissionService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.IsAdmin, nil
}
