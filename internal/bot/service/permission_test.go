package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPermission(t *testing.T) *PermissionService {
	t.Helper()

	secrets, err := NewStaticSecretProvider("letmein")
	require.NoError(t, err)

	return &PermissionService{
		Store:   newTestStore(t),
		Secrets: secrets,
	}
}

func TestAddAdminPermissionWrongSecret(t *testing.T) {
	t.Parallel()
	svc := newTestPermission(t)
	ctx := context.Background()

	granted, err := svc.AddAdminPermission(ctx, 1, "u", "wrong")
	require.NoError(t, err, "a wrong secret is an outcome, not an error")
	require.False(t, granted)

	admin, err := svc.IsAdmin(ctx, 1)
	require.NoError(t, err)
	require.False(t, admin)
}

func TestAddAdminPermissionCorrectSecret(t *testing.T) {
	t.Parallel()
	svc := newTestPermission(t)
	ctx := context.Background()

	granted, err := svc.AddAdminPermission(ctx, 1, "u", "letmein")
	require.NoError(t, err)
	require.True(t, granted)

	admin, err := svc.IsAdmin(ctx, 1)
	require.NoError(t, err)
	require.True(t, admin)
}

func TestRemoveAdminPermission(t *testing.T) {
	t.Parallel()
	svc := newTestPermission(t)
	ctx := context.Background()

	granted, err := svc.AddAdminPermission(ctx, 1, "u", "letmein")
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, svc.RemoveAdminPermission(ctx, 1, "u"))

	admin, err := svc.IsAdmin(ctx, 1)
	require.NoError(t, err)
	require.False(t, admin)
}

func TestRemoveAdminPermissionUnknownUser(t *testing.T) {
	t.Parallel()
	svc := newTestPermission(t)
	ctx := context.Background()

	// Removal upserts the user record, so an unknown user is not an error.
	require.NoError(t, svc.RemoveAdminPermission(ctx, 42, "new"))

	admin, err := svc.IsAdmin(ctx, 42)
	require.NoError(t, err)
	require.False(t, admin)
}

func TestIsAdminUnknownUser(t *testing.T) {
	t.Parallel()
	svc := newTestPermission(t)

	admin, err := svc.IsAdmin(context.Background(), 999)
	require.NoError(t, err)
	require.False(t, admin)
}
