package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
	"github.com/aussiebroadwan/graphbot/pkg/idx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) store.Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedApp(t *testing.T, s store.Store, userID int64) domain.App {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.Users().UpsertUser(ctx, userID, "u"))

	app := domain.App{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   "App",
		Email:  "a@b.com",
		Secret: "secret",
	}
	require.NoError(t, s.Apps().CreateApp(ctx, app))
	return app
}

func TestUpsertUserPreservesAdminFlag(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().SetAdmin(ctx, 1, "old", true))
	require.NoError(t, s.Users().UpsertUser(ctx, 1, "new"))

	u, err := s.Users().GetUserByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new", u.Username)
	require.True(t, u.IsAdmin, "plain upsert must not clear the admin flag")
}

func TestCreateAppConflictMapsToAlreadyExists(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	app := seedApp(t, s, 1)

	dupe := app
	dupe.Name = "Other"
	require.ErrorIs(t, s.Apps().CreateApp(ctx, dupe), store.ErrAlreadyExists)
}

func TestDeleteAppCascadesBoundAuths(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	app := seedApp(t, s, 1)

	require.NoError(t, s.BoundAuths().CreateBoundAuth(ctx, domain.BoundAuth{
		ID:          idx.New().String(),
		AppID:       app.ID,
		Name:        "work",
		AccessToken: "at",
	}))

	require.NoError(t, s.Apps().DeleteApp(ctx, app.ID))

	count, err := s.BoundAuths().CountBoundAuthsByUserID(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, count)

	require.ErrorIs(t, s.Apps().DeleteApp(ctx, app.ID), store.ErrNotFound)
}

func TestClearAppSecret(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	app := seedApp(t, s, 1)

	require.NoError(t, s.Apps().ClearAppSecret(ctx, app.ID))

	got, err := s.Apps().GetAppByID(ctx, app.ID)
	require.NoError(t, err)
	require.Empty(t, got.Secret)
}

func TestLatestBoundAuthByUser(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	app := seedApp(t, s, 1)

	_, err := s.BoundAuths().GetLatestBoundAuthByUserID(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	// ULIDs are monotonic enough here; ids order by creation.
	first := idx.New().String()
	second := idx.New().String()
	for _, id := range []string{first, second} {
		require.NoError(t, s.BoundAuths().CreateBoundAuth(ctx, domain.BoundAuth{
			ID:          id,
			AppID:       app.ID,
			Name:        "n",
			AccessToken: "at-" + id,
		}))
	}

	latest, err := s.BoundAuths().GetLatestBoundAuthByUserID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, second, latest.ID)
}

func TestPendingActionLifecycle(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	_, err := s.PendingActions().GetPendingAction(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PendingActions().UpsertPendingAction(ctx, domain.PendingAction{
		ChatID:    1,
		Command:   "/regapp",
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	// Replaced, not duplicated.
	require.NoError(t, s.PendingActions().UpsertPendingAction(ctx, domain.PendingAction{
		ChatID:    1,
		Command:   "/bindauth",
		Param:     "client-1",
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	p, err := s.PendingActions().GetPendingAction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "/bindauth", p.Command)
	require.Equal(t, "client-1", p.Param)

	require.NoError(t, s.PendingActions().DeletePendingAction(ctx, 1))
	_, err = s.PendingActions().GetPendingAction(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPendingActionExpiry(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PendingActions().UpsertPendingAction(ctx, domain.PendingAction{
		ChatID:    1,
		Command:   "/regapp",
		ExpiresAt: time.Now().UTC().Add(-time.Second),
	}))

	// Expired records are invisible to reads and removed by the sweep.
	_, err := s.PendingActions().GetPendingAction(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PendingActions().DeleteExpiredPendingActions(ctx))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	errBoom := store.ErrAlreadyExists
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpsertUser(ctx, 7, "ghost"); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Users().GetUserByID(ctx, 7)
	require.ErrorIs(t, err, store.ErrNotFound, "rolled-back upsert must leave no row")
}
